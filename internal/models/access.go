package models

import "time"

// AccessRole defines what a non-owner may do with a shared wishlist
type AccessRole string

const (
	AccessRoleView AccessRole = "view"
	AccessRoleEdit AccessRole = "edit"
)

// Valid returns true for the known roles
func (r AccessRole) Valid() bool {
	return r == AccessRoleView || r == AccessRoleEdit
}

// WishlistAccess grants a user a role on somebody else's wishlist
type WishlistAccess struct {
	ID         int64      `json:"id" db:"id"`
	WishlistID int64      `json:"wishlist_id" db:"wishlist_id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	Role       AccessRole `json:"role" db:"role"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	User       *User      `json:"user,omitempty" db:"-"`
}

// CanEdit returns true if the grant allows editing
func (a *WishlistAccess) CanEdit() bool {
	return a != nil && a.Role == AccessRoleEdit
}
