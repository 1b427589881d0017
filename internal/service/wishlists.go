package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlister/internal/audit"
	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/policy"
	"github.com/Kerhoff/wishlister/internal/repository"
	"github.com/Kerhoff/wishlister/internal/slug"
	"github.com/Kerhoff/wishlister/internal/validate"
)

// WishlistPatch holds optional wishlist fields. EventDate is YYYY-MM-DD and
// an empty string clears it.
type WishlistPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
	EventName   *string `json:"event_name"`
	EventDate   *string `json:"event_date"`
}

func (p WishlistPatch) apply(wl *models.Wishlist) (validate.WishlistInput, error) {
	in := validate.WishlistInput{
		Title:       wl.Title,
		Description: wl.Description,
		IsPublic:    wl.IsPublic,
		EventName:   wl.EventName,
		EventDate:   wl.EventDate,
	}
	setString(&in.Title, p.Title)
	setString(&in.Description, p.Description)
	setString(&in.EventName, p.EventName)
	if p.IsPublic != nil {
		in.IsPublic = *p.IsPublic
	}

	errs := &validate.Errors{}
	if err := validate.Wishlist(&in); err != nil {
		var verr *validate.Errors
		if !errors.As(err, &verr) {
			return in, err
		}
		errs = verr
	}
	date, ok := parseDate(p.EventDate, wl.EventDate)
	if !ok {
		errs.Add("event_date", "Enter a valid date (YYYY-MM-DD)")
	}
	in.EventDate = date
	return in, errs.Err()
}

// WishlistView is a wishlist as seen by one actor
type WishlistView struct {
	Wishlist *models.Wishlist `json:"wishlist"`
	Access   policy.Result    `json:"access"`
	CanEdit  bool             `json:"can_edit"`
	IsOwner  bool             `json:"is_owner"`
}

// WishlistPage is one page of an owner listing
type WishlistPage struct {
	Wishlists []*models.Wishlist `json:"wishlists"`
	Page      int                `json:"page"`
	Pages     int                `json:"pages"`
	Total     int                `json:"total"`
	Query     string             `json:"q"`
	Sort      string             `json:"sort"`
}

// CreateWishlist validates the input, picks a free slug and stores the wishlist
func (s *Service) CreateWishlist(ctx context.Context, actor *models.User, patch WishlistPatch) (*models.Wishlist, error) {
	in, err := patch.apply(&models.Wishlist{})
	if err != nil {
		return nil, err
	}

	wl := &models.Wishlist{
		OwnerID:     actor.ID,
		Title:       in.Title,
		Description: in.Description,
		IsPublic:    in.IsPublic,
		EventName:   in.EventName,
		EventDate:   in.EventDate,
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := slug.WishlistCandidate(wl.Title, actor.ID, attempt)
		exists, err := s.Wishlists.SlugExists(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to check slug: %w", err)
		}
		if exists {
			continue
		}

		wl.Slug = candidate
		created, err := s.Wishlists.Create(ctx, wl)
		switch {
		case err == nil:
			s.audit.Log(audit.WishlistCreate, actor, created, map[string]any{
				"title":     created.Title,
				"is_public": created.IsPublic,
			})
			s.logger.WithFields(logrus.Fields{
				"wishlist_id": created.ID,
				"owner_id":    actor.ID,
			}).Info("Created wishlist")
			return created, nil
		case repository.IsConflict(err, repository.ConstraintWishlistTitle):
			return nil, ErrDuplicateTitle
		case repository.IsConflict(err, repository.ConstraintWishlistSlug):
			s.logger.WithField("slug", candidate).Debug("Wishlist slug taken concurrently, retrying")
			continue
		default:
			return nil, fmt.Errorf("failed to create wishlist: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to find a free slug for %q after %d attempts", wl.Title, maxAttempts)
}

// wishlistBySlug loads a wishlist or returns ErrNotFound
func (s *Service) wishlistBySlug(ctx context.Context, slugStr string) (*models.Wishlist, error) {
	wl, err := s.Wishlists.GetBySlug(ctx, slugStr)
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist %s: %w", slugStr, err)
	}
	if wl == nil {
		return nil, ErrNotFound
	}
	return wl, nil
}

// loadItems attaches the items of wl
func (s *Service) loadItems(ctx context.Context, wl *models.Wishlist) error {
	items, err := s.Items.ListByWishlist(ctx, wl.ID)
	if err != nil {
		return fmt.Errorf("failed to list items of wishlist %d: %w", wl.ID, err)
	}
	wl.Items = items
	return nil
}

// GetWishlist returns the wishlist with its items when actor may view it
func (s *Service) GetWishlist(ctx context.Context, actor *models.User, slugStr string) (*WishlistView, error) {
	wl, err := s.wishlistBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}

	view, err := s.Policy.View(ctx, actor, wl)
	if err != nil {
		return nil, err
	}
	if !view.Allowed {
		return nil, s.denied(actor, wl, "view", view.Reason)
	}
	edit, err := s.Policy.Edit(ctx, actor, wl)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, wl); err != nil {
		return nil, err
	}
	if !wl.IsOwnedBy(actor) {
		wl.ShareToken = nil
	}

	return &WishlistView{
		Wishlist: wl,
		Access:   view,
		CanEdit:  edit.Allowed,
		IsOwner:  wl.IsOwnedBy(actor),
	}, nil
}

// Editable returns the wishlist when actor may edit it
func (s *Service) Editable(ctx context.Context, actor *models.User, slugStr string) (*models.Wishlist, error) {
	wl, err := s.wishlistBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	res, err := s.Policy.Edit(ctx, actor, wl)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return nil, s.denied(actor, wl, "edit", res.Reason)
	}
	return wl, nil
}

// owned returns the wishlist when actor owns it
func (s *Service) owned(ctx context.Context, actor *models.User, slugStr, action string) (*models.Wishlist, error) {
	wl, err := s.wishlistBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	if !wl.IsOwnedBy(actor) {
		return nil, s.denied(actor, wl, action, policy.ReasonNotOwner)
	}
	return wl, nil
}

// ListWishlists returns one page of the actor's own wishlists
func (s *Service) ListWishlists(ctx context.Context, actor *models.User, q, sortKey string, page int) (*WishlistPage, error) {
	if page < 1 {
		page = 1
	}
	q = strings.TrimSpace(q)

	items, total, err := s.Wishlists.ListByOwner(ctx, actor.ID, repository.WishlistFilters{
		Query:  q,
		Sort:   sortKey,
		Limit:  PageSize,
		Offset: (page - 1) * PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlists: %w", err)
	}

	pages := (total + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	return &WishlistPage{
		Wishlists: items,
		Page:      page,
		Pages:     pages,
		Total:     total,
		Query:     q,
		Sort:      sortKey,
	}, nil
}

// ListShared returns wishlists other users shared with actor
func (s *Service) ListShared(ctx context.Context, actor *models.User) ([]*models.Wishlist, error) {
	list, err := s.Wishlists.ListShared(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared wishlists: %w", err)
	}
	return list, nil
}

// UpdateWishlist applies patch to an owned wishlist. The slug never changes.
func (s *Service) UpdateWishlist(ctx context.Context, actor *models.User, slugStr string, patch WishlistPatch) (*models.Wishlist, error) {
	wl, err := s.owned(ctx, actor, slugStr, "update")
	if err != nil {
		return nil, err
	}

	in, err := patch.apply(wl)
	if err != nil {
		return nil, err
	}

	changes := map[string]change{}
	track(changes, "title", wl.Title, in.Title)
	track(changes, "description", wl.Description, in.Description)
	track(changes, "event_name", wl.EventName, in.EventName)
	track(changes, "event_date", formatDate(wl.EventDate), formatDate(in.EventDate))
	wasPublic := wl.IsPublic

	wl.Title = in.Title
	wl.Description = in.Description
	wl.IsPublic = in.IsPublic
	wl.EventName = in.EventName
	wl.EventDate = in.EventDate

	updated, err := s.Wishlists.Update(ctx, wl)
	if err != nil {
		if repository.IsConflict(err, repository.ConstraintWishlistTitle) {
			return nil, ErrDuplicateTitle
		}
		return nil, fmt.Errorf("failed to update wishlist %d: %w", wl.ID, err)
	}

	if len(changes) > 0 {
		s.audit.Log(audit.WishlistUpdate, actor, updated, map[string]any{"changes": changes})
	}
	if wasPublic != updated.IsPublic {
		s.audit.Log(audit.WishlistTogglePublic, actor, updated, map[string]any{
			"from": wasPublic,
			"to":   updated.IsPublic,
		})
	}
	return updated, nil
}

// DeleteWishlist removes an owned wishlist with its items and grants
func (s *Service) DeleteWishlist(ctx context.Context, actor *models.User, slugStr string) error {
	wl, err := s.owned(ctx, actor, slugStr, "delete")
	if err != nil {
		return err
	}
	if err := s.Wishlists.Delete(ctx, wl.ID); err != nil {
		return fmt.Errorf("failed to delete wishlist %d: %w", wl.ID, err)
	}
	s.audit.Log(audit.WishlistDelete, actor, wl, map[string]any{"title": wl.Title})
	return nil
}

// ---- Sharing ----

// EnsureShareToken returns the share token of an owned wishlist, creating
// one when none exists or rotate is set
func (s *Service) EnsureShareToken(ctx context.Context, actor *models.User, slugStr string, rotate bool) (string, error) {
	wl, err := s.owned(ctx, actor, slugStr, "share")
	if err != nil {
		return "", err
	}
	if wl.HasShareToken() && !rotate {
		return *wl.ShareToken, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		token, err := slug.NewShareToken()
		if err != nil {
			return "", fmt.Errorf("failed to generate share token: %w", err)
		}
		if wl.HasShareToken() && *wl.ShareToken == token {
			continue
		}

		err = s.Wishlists.SetShareToken(ctx, wl.ID, &token)
		if repository.IsConflict(err, repository.ConstraintWishlistToken) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to store share token: %w", err)
		}

		wl.ShareToken = &token
		s.audit.Log(audit.ShareGenerate, actor, wl, map[string]any{
			"token":   audit.MaskToken(token, 4),
			"rotated": rotate,
		})
		return token, nil
	}
	return "", fmt.Errorf("failed to generate a unique share token after %d attempts", maxAttempts)
}

// RevokeShareToken clears the share token of an owned wishlist
func (s *Service) RevokeShareToken(ctx context.Context, actor *models.User, slugStr string) error {
	wl, err := s.owned(ctx, actor, slugStr, "revoke")
	if err != nil {
		return err
	}

	old := ""
	if wl.ShareToken != nil {
		old = *wl.ShareToken
	}
	if err := s.Wishlists.SetShareToken(ctx, wl.ID, nil); err != nil {
		return fmt.Errorf("failed to revoke share token: %w", err)
	}
	wl.ShareToken = nil
	s.audit.Log(audit.ShareRevoke, actor, wl, map[string]any{"token": audit.MaskToken(old, 4)})
	return nil
}

// ---- Read-only views ----

// PublicWishlist returns a public wishlist by slug and counts the view
func (s *Service) PublicWishlist(ctx context.Context, actor *models.User, slugStr string) (*models.Wishlist, error) {
	wl, err := s.wishlistBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	if !wl.IsPublic {
		return nil, s.denied(actor, wl, "public-view", policy.ReasonPrivate)
	}
	if err := s.countView(ctx, wl); err != nil {
		return nil, err
	}
	s.audit.Log(audit.PublicView, actor, wl, nil)
	return wl, nil
}

// SharedWishlist returns the wishlist holding token regardless of its public flag
func (s *Service) SharedWishlist(ctx context.Context, actor *models.User, token string) (*models.Wishlist, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	wl, err := s.Wishlists.GetByShareToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist by token: %w", err)
	}
	if wl == nil {
		return nil, ErrNotFound
	}
	if err := s.countView(ctx, wl); err != nil {
		return nil, err
	}
	s.audit.Log(audit.ShareView, actor, wl, map[string]any{"token": audit.MaskToken(token, 4)})
	return wl, nil
}

func (s *Service) countView(ctx context.Context, wl *models.Wishlist) error {
	now := time.Now().UTC()
	if err := s.Wishlists.RecordView(ctx, wl.ID, now); err != nil {
		return fmt.Errorf("failed to record view of wishlist %d: %w", wl.ID, err)
	}
	wl.ViewCount++
	wl.LastViewedAt = &now
	// read-only views never reveal the token
	wl.ShareToken = nil
	return s.loadItems(ctx, wl)
}

// Sitemap lists every public wishlist
func (s *Service) Sitemap(ctx context.Context) ([]*models.Wishlist, error) {
	list, err := s.Wishlists.ListPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list public wishlists: %w", err)
	}
	return list, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
