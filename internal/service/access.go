package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/wishlister/internal/audit"
	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/validate"
)

// ListAccess returns the grants of an owned wishlist
func (s *Service) ListAccess(ctx context.Context, actor *models.User, slugStr string) ([]*models.WishlistAccess, error) {
	wl, err := s.owned(ctx, actor, slugStr, "access")
	if err != nil {
		return nil, err
	}
	grants, err := s.Access.ListByWishlist(ctx, wl.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access of wishlist %d: %w", wl.ID, err)
	}
	return grants, nil
}

// GrantAccess gives the user registered under email a role on an owned
// wishlist, replacing any previous role
func (s *Service) GrantAccess(ctx context.Context, actor *models.User, slugStr, email string, role models.AccessRole) (*models.WishlistAccess, error) {
	wl, err := s.owned(ctx, actor, slugStr, "grant")
	if err != nil {
		return nil, err
	}

	errs := &validate.Errors{}
	role = models.AccessRole(strings.ToLower(strings.TrimSpace(string(role))))
	if !role.Valid() {
		errs.Add("role", "Role must be view or edit")
	}
	target, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user: %w", err)
	}
	switch {
	case target == nil:
		errs.Add("email", "No user with this email")
	case target.ID == wl.OwnerID:
		errs.Add("email", "The owner already has full access")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	grant, err := s.Access.Upsert(ctx, &models.WishlistAccess{
		WishlistID: wl.ID,
		UserID:     target.ID,
		Role:       role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant access: %w", err)
	}
	grant.User = target

	s.audit.Log(audit.AccessGrant, actor, wl, map[string]any{
		"target_user_id": target.ID,
		"role":           string(role),
	})
	return grant, nil
}

// RevokeAccess removes the grant of userID on an owned wishlist
func (s *Service) RevokeAccess(ctx context.Context, actor *models.User, slugStr string, userID int64) error {
	wl, err := s.owned(ctx, actor, slugStr, "revoke-access")
	if err != nil {
		return err
	}
	if err := s.Access.Delete(ctx, wl.ID, userID); err != nil {
		return fmt.Errorf("failed to revoke access: %w", err)
	}
	s.audit.Log(audit.AccessRevoke, actor, wl, map[string]any{"target_user_id": userID})
	return nil
}
