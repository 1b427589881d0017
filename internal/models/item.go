package models

import "time"

const (
	// ItemTitleMaxLen is the maximum length of an item title
	ItemTitleMaxLen = 200
	// ItemSlugMaxLen is the maximum length of an item slug
	ItemSlugMaxLen = 220
)

// Item represents a single desired product within a wishlist
type Item struct {
	ID            int64     `json:"id" db:"id"`
	WishlistID    int64     `json:"wishlist_id" db:"wishlist_id"`
	CreatedByID   *int64    `json:"created_by_id,omitempty" db:"created_by_id"`
	Title         string    `json:"title" db:"title"`
	Slug          string    `json:"slug" db:"slug"`
	URL           string    `json:"url" db:"url"`
	ImageURL      string    `json:"image_url" db:"image_url"`
	Note          string    `json:"note" db:"note"`
	PriceCurrency string    `json:"price_currency" db:"price_currency"`
	PriceAmount   *string   `json:"price_amount,omitempty" db:"price_amount"`
	IsPurchased   bool      `json:"is_purchased" db:"is_purchased"`
	IsReserved    bool      `json:"is_reserved" db:"is_reserved"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CreatedBy returns true if the given user created the item
func (i *Item) CreatedBy(u *User) bool {
	return u != nil && i.CreatedByID != nil && *i.CreatedByID == u.ID
}
