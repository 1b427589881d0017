package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/repository"
)

const itemColumns = `id, wishlist_id, created_by_id, title, slug, url, image_url, note,
	price_currency, price_amount, is_purchased, is_reserved, created_at, updated_at`

type itemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *sqlx.DB) repository.ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	query := r.db.Rebind(`
		INSERT INTO items (wishlist_id, created_by_id, title, slug, url, image_url, note,
			price_currency, price_amount, is_purchased, is_reserved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	err := r.db.QueryRowxContext(ctx, query,
		item.WishlistID,
		item.CreatedByID,
		item.Title,
		item.Slug,
		item.URL,
		item.ImageURL,
		item.Note,
		item.PriceCurrency,
		item.PriceAmount,
		item.IsPurchased,
		item.IsReserved,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.ID)
	if err != nil {
		return nil, wrap(err, "failed to create item")
	}

	return item, nil
}

func (r *itemRepository) GetBySlug(ctx context.Context, wishlistID int64, slug string) (*models.Item, error) {
	query := r.db.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE wishlist_id = ? AND slug = ?`)

	item := &models.Item{}
	if err := r.db.GetContext(ctx, item, query, wishlistID, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap(err, "failed to get item")
	}
	return item, nil
}

func (r *itemRepository) ListByWishlist(ctx context.Context, wishlistID int64) ([]*models.Item, error) {
	query := r.db.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE wishlist_id = ? ORDER BY created_at DESC, id DESC`)

	var items []*models.Item
	if err := r.db.SelectContext(ctx, &items, query, wishlistID); err != nil {
		return nil, wrap(err, "failed to list items")
	}
	return items, nil
}

func (r *itemRepository) URLs(ctx context.Context, wishlistID int64) (map[string]bool, error) {
	var urls []string
	query := r.db.Rebind(`SELECT url FROM items WHERE wishlist_id = ? AND url <> ''`)
	if err := r.db.SelectContext(ctx, &urls, query, wishlistID); err != nil {
		return nil, wrap(err, "failed to list item urls")
	}

	set := make(map[string]bool, len(urls))
	for _, u := range urls {
		set[u] = true
	}
	return set, nil
}

func (r *itemRepository) SlugsWithPrefix(ctx context.Context, wishlistID int64, prefix string) (map[string]bool, error) {
	var slugs []string
	query := r.db.Rebind(`SELECT slug FROM items WHERE wishlist_id = ? AND (slug = ? OR slug LIKE ?)`)
	if err := r.db.SelectContext(ctx, &slugs, query, wishlistID, prefix, prefix+"-%"); err != nil {
		return nil, wrap(err, "failed to list item slugs")
	}

	set := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		set[s] = true
	}
	return set, nil
}

func (r *itemRepository) ListMissingSlugs(ctx context.Context) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE slug = '' ORDER BY wishlist_id, id`

	var items []*models.Item
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, wrap(err, "failed to list items without slug")
	}
	return items, nil
}

func (r *itemRepository) UpdateSlug(ctx context.Context, id int64, slug string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE items SET slug = ? WHERE id = ?`), slug, id); err != nil {
		return wrap(err, "failed to update item slug")
	}
	return nil
}

func (r *itemRepository) Update(ctx context.Context, item *models.Item) (*models.Item, error) {
	query := r.db.Rebind(`
		UPDATE items
		SET title = ?, url = ?, image_url = ?, note = ?, price_currency = ?, price_amount = ?,
			is_purchased = ?, is_reserved = ?, updated_at = ?
		WHERE id = ?`)

	item.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		item.Title,
		item.URL,
		item.ImageURL,
		item.Note,
		item.PriceCurrency,
		item.PriceAmount,
		item.IsPurchased,
		item.IsReserved,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return nil, wrap(err, "failed to update item")
	}
	return item, nil
}

func (r *itemRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM items WHERE id = ?`), id); err != nil {
		return wrap(err, "failed to delete item")
	}
	return nil
}
