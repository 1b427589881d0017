// Package policy decides who may view or edit a wishlist.
//
// Every check returns a Result so callers never need to care whether a
// decision came from ownership, the public flag or an explicit grant.
package policy

import (
	"context"
	"fmt"

	"github.com/Kerhoff/wishlister/internal/models"
)

// Reason explains why a check was allowed or denied
type Reason string

const (
	ReasonOwner      Reason = "owner"
	ReasonPublic     Reason = "public"
	ReasonShared     Reason = "shared"
	ReasonSharedEdit Reason = "shared-edit"
	ReasonCreator    Reason = "creator"
	ReasonPrivate    Reason = "private"
	ReasonNotOwner   Reason = "not-owner"
)

// Result is the outcome of a policy check
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

func allow(r Reason) Result { return Result{Allowed: true, Reason: r} }
func deny(r Reason) Result  { return Result{Allowed: false, Reason: r} }

// CanView applies the view rules. grant is the actor's access row on the
// wishlist, or nil when there is none.
func CanView(actor *models.User, wl *models.Wishlist, grant *models.WishlistAccess) Result {
	if wl.IsOwnedBy(actor) {
		return allow(ReasonOwner)
	}
	if wl.IsPublic {
		return allow(ReasonPublic)
	}
	if authenticated(actor) && grant != nil && grant.UserID == actor.ID {
		return allow(ReasonShared)
	}
	return deny(ReasonPrivate)
}

// CanEdit applies the edit rules.
func CanEdit(actor *models.User, wl *models.Wishlist, grant *models.WishlistAccess) Result {
	if wl.IsOwnedBy(actor) {
		return allow(ReasonOwner)
	}
	if authenticated(actor) && grant != nil && grant.UserID == actor.ID && grant.CanEdit() {
		return allow(ReasonSharedEdit)
	}
	return deny(ReasonNotOwner)
}

// CanEditItem extends CanEdit for a single item: the user who created the
// item keeps edit rights while they still hold a grant on the wishlist.
func CanEditItem(actor *models.User, wl *models.Wishlist, item *models.Item, grant *models.WishlistAccess) Result {
	if res := CanEdit(actor, wl, grant); res.Allowed {
		return res
	}
	if authenticated(actor) && item != nil && item.CreatedBy(actor) && grant != nil && grant.UserID == actor.ID {
		return allow(ReasonCreator)
	}
	return deny(ReasonNotOwner)
}

func authenticated(u *models.User) bool {
	return u != nil && u.ID != 0
}

// GrantLookup finds the access row of a user on a wishlist. It returns
// (nil, nil) when no grant exists.
type GrantLookup interface {
	GetByWishlistAndUser(ctx context.Context, wishlistID, userID int64) (*models.WishlistAccess, error)
}

// Engine resolves grants from storage before applying the rules
type Engine struct {
	grants GrantLookup
}

// NewEngine creates a policy engine backed by the given grant lookup
func NewEngine(grants GrantLookup) *Engine {
	return &Engine{grants: grants}
}

// View reports whether actor may view wl
func (e *Engine) View(ctx context.Context, actor *models.User, wl *models.Wishlist) (Result, error) {
	if wl.IsOwnedBy(actor) || wl.IsPublic {
		return CanView(actor, wl, nil), nil
	}
	grant, err := e.grant(ctx, actor, wl)
	if err != nil {
		return deny(ReasonPrivate), err
	}
	return CanView(actor, wl, grant), nil
}

// Edit reports whether actor may edit wl
func (e *Engine) Edit(ctx context.Context, actor *models.User, wl *models.Wishlist) (Result, error) {
	if wl.IsOwnedBy(actor) {
		return CanEdit(actor, wl, nil), nil
	}
	grant, err := e.grant(ctx, actor, wl)
	if err != nil {
		return deny(ReasonNotOwner), err
	}
	return CanEdit(actor, wl, grant), nil
}

// EditItem reports whether actor may edit item inside wl
func (e *Engine) EditItem(ctx context.Context, actor *models.User, wl *models.Wishlist, item *models.Item) (Result, error) {
	if wl.IsOwnedBy(actor) {
		return CanEditItem(actor, wl, item, nil), nil
	}
	grant, err := e.grant(ctx, actor, wl)
	if err != nil {
		return deny(ReasonNotOwner), err
	}
	return CanEditItem(actor, wl, item, grant), nil
}

func (e *Engine) grant(ctx context.Context, actor *models.User, wl *models.Wishlist) (*models.WishlistAccess, error) {
	if !authenticated(actor) {
		return nil, nil
	}
	grant, err := e.grants.GetByWishlistAndUser(ctx, wl.ID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load access grant: %w", err)
	}
	return grant, nil
}
