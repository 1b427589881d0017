package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/repository"
)

const wishlistColumns = `id, owner_id, title, description, is_public, share_token, slug,
	event_name, event_date, view_count, last_viewed_at, created_at, updated_at`

// wishlistSorts maps the accepted sort keys to ORDER BY clauses
var wishlistSorts = map[string]string{
	"created":  "created_at ASC, id ASC",
	"-created": "created_at DESC, id DESC",
	"title":    "title ASC, id ASC",
	"-title":   "title DESC, id DESC",
}

// DefaultWishlistSort is used when the requested sort key is unknown
const DefaultWishlistSort = "-created"

type wishlistRepository struct {
	db *sqlx.DB
}

// NewWishlistRepository creates a new wishlist repository
func NewWishlistRepository(db *sqlx.DB) repository.WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) Create(ctx context.Context, wl *models.Wishlist) (*models.Wishlist, error) {
	query := r.db.Rebind(`
		INSERT INTO wishlists (owner_id, title, description, is_public, share_token, slug,
			event_name, event_date, view_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		RETURNING id`)

	now := time.Now().UTC()
	wl.CreatedAt = now
	wl.UpdatedAt = now

	err := r.db.QueryRowxContext(ctx, query,
		wl.OwnerID,
		wl.Title,
		wl.Description,
		wl.IsPublic,
		wl.ShareToken,
		wl.Slug,
		wl.EventName,
		wl.EventDate,
		wl.CreatedAt,
		wl.UpdatedAt,
	).Scan(&wl.ID)
	if err != nil {
		return nil, wrap(err, "failed to create wishlist")
	}

	return wl, nil
}

func (r *wishlistRepository) GetByID(ctx context.Context, id int64) (*models.Wishlist, error) {
	return r.getOne(ctx, `SELECT `+wishlistColumns+` FROM wishlists WHERE id = ?`, id)
}

func (r *wishlistRepository) GetBySlug(ctx context.Context, slug string) (*models.Wishlist, error) {
	return r.getOne(ctx, `SELECT `+wishlistColumns+` FROM wishlists WHERE slug = ?`, slug)
}

func (r *wishlistRepository) GetByShareToken(ctx context.Context, token string) (*models.Wishlist, error) {
	if token == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+wishlistColumns+` FROM wishlists WHERE share_token = ?`, token)
}

func (r *wishlistRepository) getOne(ctx context.Context, query string, args ...any) (*models.Wishlist, error) {
	wl := &models.Wishlist{}
	if err := r.db.GetContext(ctx, wl, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap(err, "failed to get wishlist")
	}
	return wl, nil
}

func (r *wishlistRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM wishlists WHERE slug = ?`), slug)
	if err != nil {
		return false, wrap(err, "failed to check wishlist slug")
	}
	return n > 0, nil
}

func (r *wishlistRepository) ListByOwner(ctx context.Context, ownerID int64, filters repository.WishlistFilters) ([]*models.Wishlist, int, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}

	if q := strings.TrimSpace(filters.Query); q != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM wishlists WHERE `+cond), args...); err != nil {
		return nil, 0, wrap(err, "failed to count wishlists")
	}

	order, ok := wishlistSorts[filters.Sort]
	if !ok {
		order = wishlistSorts[DefaultWishlistSort]
	}
	query := `SELECT ` + wishlistColumns + ` FROM wishlists WHERE ` + cond + ` ORDER BY ` + order
	if filters.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filters.Limit, filters.Offset)
	}

	var lists []*models.Wishlist
	if err := r.db.SelectContext(ctx, &lists, r.db.Rebind(query), args...); err != nil {
		return nil, 0, wrap(err, "failed to list wishlists")
	}
	return lists, total, nil
}

func (r *wishlistRepository) ListShared(ctx context.Context, userID int64) ([]*models.Wishlist, error) {
	query := r.db.Rebind(`
		SELECT w.id, w.owner_id, w.title, w.description, w.is_public, w.share_token, w.slug,
			w.event_name, w.event_date, w.view_count, w.last_viewed_at, w.created_at, w.updated_at
		FROM wishlists w
		JOIN wishlist_access a ON a.wishlist_id = w.id
		WHERE a.user_id = ? AND w.owner_id <> ?
		ORDER BY w.created_at DESC, w.id DESC`)

	var lists []*models.Wishlist
	if err := r.db.SelectContext(ctx, &lists, query, userID, userID); err != nil {
		return nil, wrap(err, "failed to list shared wishlists")
	}
	return lists, nil
}

func (r *wishlistRepository) ListPublic(ctx context.Context) ([]*models.Wishlist, error) {
	query := `SELECT ` + wishlistColumns + ` FROM wishlists WHERE is_public = ? ORDER BY id`

	var lists []*models.Wishlist
	if err := r.db.SelectContext(ctx, &lists, r.db.Rebind(query), true); err != nil {
		return nil, wrap(err, "failed to list public wishlists")
	}
	return lists, nil
}

func (r *wishlistRepository) Update(ctx context.Context, wl *models.Wishlist) (*models.Wishlist, error) {
	query := r.db.Rebind(`
		UPDATE wishlists
		SET title = ?, description = ?, is_public = ?, event_name = ?, event_date = ?, updated_at = ?
		WHERE id = ?`)

	wl.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		wl.Title,
		wl.Description,
		wl.IsPublic,
		wl.EventName,
		wl.EventDate,
		wl.UpdatedAt,
		wl.ID,
	)
	if err != nil {
		return nil, wrap(err, "failed to update wishlist")
	}
	return wl, nil
}

func (r *wishlistRepository) SetShareToken(ctx context.Context, id int64, token *string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE wishlists SET share_token = ? WHERE id = ?`), token, id)
	if err != nil {
		return wrap(err, "failed to set share token")
	}
	return nil
}

func (r *wishlistRepository) RecordView(ctx context.Context, id int64, at time.Time) error {
	query := r.db.Rebind(`UPDATE wishlists SET view_count = view_count + 1, last_viewed_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, at.UTC(), id); err != nil {
		return wrap(err, "failed to record wishlist view")
	}
	return nil
}

func (r *wishlistRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM wishlists WHERE id = ?`), id); err != nil {
		return wrap(err, "failed to delete wishlist")
	}
	return nil
}
