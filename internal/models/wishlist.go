package models

import "time"

const (
	// WishlistTitleMaxLen is the maximum length of a wishlist title
	WishlistTitleMaxLen = 160
	// WishlistSlugMaxLen is the maximum length of a wishlist slug
	WishlistSlugMaxLen = 180
	// ShareTokenMaxLen is the column width of a share token
	ShareTokenMaxLen = 32
)

// Wishlist represents a named collection of items owned by a single user
type Wishlist struct {
	ID           int64      `json:"id" db:"id"`
	OwnerID      int64      `json:"owner_id" db:"owner_id"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description" db:"description"`
	IsPublic     bool       `json:"is_public" db:"is_public"`
	ShareToken   *string    `json:"share_token,omitempty" db:"share_token"`
	Slug         string     `json:"slug" db:"slug"`
	EventName    string     `json:"event_name" db:"event_name"`
	EventDate    *time.Time `json:"event_date,omitempty" db:"event_date"`
	ViewCount    int64      `json:"view_count" db:"view_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty" db:"last_viewed_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	Items        []*Item    `json:"items,omitempty" db:"-"`
}

// IsOwnedBy returns true if the given user owns the wishlist
func (w *Wishlist) IsOwnedBy(u *User) bool {
	return u != nil && u.ID != 0 && u.ID == w.OwnerID
}

// HasShareToken returns true if a share token is currently set
func (w *Wishlist) HasShareToken() bool {
	return w.ShareToken != nil && *w.ShareToken != ""
}

// LastModified returns the time used by the sitemap for this wishlist
func (w *Wishlist) LastModified() time.Time {
	if w.LastViewedAt != nil {
		return *w.LastViewedAt
	}
	return w.CreatedAt
}
