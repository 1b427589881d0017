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

type accessRepository struct {
	db *sqlx.DB
}

// NewAccessRepository creates a new wishlist access repository
func NewAccessRepository(db *sqlx.DB) repository.AccessRepository {
	return &accessRepository{db: db}
}

func (r *accessRepository) Upsert(ctx context.Context, a *models.WishlistAccess) (*models.WishlistAccess, error) {
	query := r.db.Rebind(`
		INSERT INTO wishlist_access (wishlist_id, user_id, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (wishlist_id, user_id)
		DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`)

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		a.WishlistID,
		a.UserID,
		a.Role,
		now,
		now,
	)
	if err != nil {
		return nil, wrap(err, "failed to upsert wishlist access")
	}

	// re-read so an updated grant keeps its original id and created_at
	return r.GetByWishlistAndUser(ctx, a.WishlistID, a.UserID)
}

func (r *accessRepository) GetByWishlistAndUser(ctx context.Context, wishlistID, userID int64) (*models.WishlistAccess, error) {
	query := r.db.Rebind(`
		SELECT id, wishlist_id, user_id, role, created_at, updated_at
		FROM wishlist_access
		WHERE wishlist_id = ? AND user_id = ?`)

	a := &models.WishlistAccess{}
	if err := r.db.GetContext(ctx, a, query, wishlistID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap(err, "failed to get wishlist access")
	}
	return a, nil
}

// accessRow is a grant joined with the grantee's email
type accessRow struct {
	models.WishlistAccess
	Email string `db:"email"`
}

func (r *accessRepository) ListByWishlist(ctx context.Context, wishlistID int64) ([]*models.WishlistAccess, error) {
	query := r.db.Rebind(`
		SELECT a.id, a.wishlist_id, a.user_id, a.role, a.created_at, a.updated_at, u.email
		FROM wishlist_access a
		JOIN users u ON u.id = a.user_id
		WHERE a.wishlist_id = ?
		ORDER BY u.email`)

	var rows []accessRow
	if err := r.db.SelectContext(ctx, &rows, query, wishlistID); err != nil {
		return nil, wrap(err, "failed to list wishlist access")
	}

	grants := make([]*models.WishlistAccess, 0, len(rows))
	for i := range rows {
		a := rows[i].WishlistAccess
		a.User = &models.User{ID: a.UserID, Email: rows[i].Email}
		grants = append(grants, &a)
	}
	return grants, nil
}

func (r *accessRepository) Delete(ctx context.Context, wishlistID, userID int64) error {
	query := r.db.Rebind(`DELETE FROM wishlist_access WHERE wishlist_id = ? AND user_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, wishlistID, userID); err != nil {
		return wrap(err, "failed to delete wishlist access")
	}
	return nil
}
