package repository

import (
	"context"
	"time"

	"github.com/Kerhoff/wishlister/internal/models"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) (*models.Profile, error)
}

// WishlistRepository defines the interface for wishlist data operations
type WishlistRepository interface {
	Create(ctx context.Context, wishlist *models.Wishlist) (*models.Wishlist, error)
	GetByID(ctx context.Context, id int64) (*models.Wishlist, error)
	GetBySlug(ctx context.Context, slug string) (*models.Wishlist, error)
	GetByShareToken(ctx context.Context, token string) (*models.Wishlist, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListByOwner(ctx context.Context, ownerID int64, filters WishlistFilters) ([]*models.Wishlist, int, error)
	ListShared(ctx context.Context, userID int64) ([]*models.Wishlist, error)
	ListPublic(ctx context.Context) ([]*models.Wishlist, error)
	Update(ctx context.Context, wishlist *models.Wishlist) (*models.Wishlist, error)
	// SetShareToken writes only the share_token column; nil clears it
	SetShareToken(ctx context.Context, id int64, token *string) error
	// RecordView bumps view_count and last_viewed_at only
	RecordView(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// ItemRepository defines the interface for wishlist item operations
type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	GetBySlug(ctx context.Context, wishlistID int64, slug string) (*models.Item, error)
	ListByWishlist(ctx context.Context, wishlistID int64) ([]*models.Item, error)
	// URLs returns the set of non-empty item URLs on a wishlist
	URLs(ctx context.Context, wishlistID int64) (map[string]bool, error)
	// SlugsWithPrefix returns slugs on a wishlist equal to prefix or starting with prefix + "-"
	SlugsWithPrefix(ctx context.Context, wishlistID int64, prefix string) (map[string]bool, error)
	ListMissingSlugs(ctx context.Context) ([]*models.Item, error)
	UpdateSlug(ctx context.Context, id int64, slug string) error
	Update(ctx context.Context, item *models.Item) (*models.Item, error)
	Delete(ctx context.Context, id int64) error
}

// AccessRepository defines the interface for wishlist access grants
type AccessRepository interface {
	// Upsert creates the grant or updates the role of an existing one
	Upsert(ctx context.Context, access *models.WishlistAccess) (*models.WishlistAccess, error)
	GetByWishlistAndUser(ctx context.Context, wishlistID, userID int64) (*models.WishlistAccess, error)
	ListByWishlist(ctx context.Context, wishlistID int64) ([]*models.WishlistAccess, error)
	Delete(ctx context.Context, wishlistID, userID int64) error
}

// WishlistFilters represents filters for owner wishlist listings
type WishlistFilters struct {
	Query  string
	Sort   string
	Limit  int
	Offset int
}
