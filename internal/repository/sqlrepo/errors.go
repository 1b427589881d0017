// Package sqlrepo implements the repository interfaces on top of sqlx. The
// same queries run on PostgreSQL and SQLite; placeholders are written as ?
// and rebound for the active driver.
package sqlrepo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/Kerhoff/wishlister/internal/repository"
)

const pqUniqueViolation = "23505"

// sqlite reports the violated columns, not the index name
var sqliteConstraints = map[string]string{
	"users.email":                                          repository.ConstraintUserEmail,
	"profiles.user_id":                                     repository.ConstraintProfileUser,
	"wishlists.owner_id, wishlists.title":                  repository.ConstraintWishlistTitle,
	"wishlists.slug":                                       repository.ConstraintWishlistSlug,
	"wishlists.share_token":                                repository.ConstraintWishlistToken,
	"items.wishlist_id, items.slug":                        repository.ConstraintItemSlug,
	"wishlist_access.wishlist_id, wishlist_access.user_id": repository.ConstraintWishlistAccessKey,
}

// wrap annotates err with msg, turning unique violations into
// *repository.ConflictError
func wrap(err error, msg string) error {
	if c := conflict(err); c != nil {
		return fmt.Errorf("%s: %w", msg, c)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func conflict(err error) *repository.ConflictError {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return &repository.ConflictError{Constraint: pqErr.Constraint, Err: err}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		cols := strings.TrimPrefix(liteErr.Error(), "UNIQUE constraint failed: ")
		name, ok := sqliteConstraints[cols]
		if !ok {
			name = cols
		}
		return &repository.ConflictError{Constraint: name, Err: err}
	}
	return nil
}
