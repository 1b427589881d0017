package repository

import (
	"errors"
	"fmt"
)

// Logical names of the unique constraints, shared by every driver
const (
	ConstraintUserEmail         = "users_email_key"
	ConstraintProfileUser       = "profiles_user_id_key"
	ConstraintWishlistTitle     = "wishlists_owner_title_key"
	ConstraintWishlistSlug      = "wishlists_slug_key"
	ConstraintWishlistToken     = "wishlists_share_token_key"
	ConstraintItemSlug          = "items_wishlist_slug_key"
	ConstraintWishlistAccessKey = "wishlist_access_wishlist_user_key"
)

// ErrConflict is matched by every ConflictError
var ErrConflict = errors.New("unique constraint violation")

// ConflictError reports a unique constraint violation
type ConflictError struct {
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrConflict) true for any ConflictError
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IsConflict reports whether err violates the named constraint
func IsConflict(err error, constraint string) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Constraint == constraint
}
