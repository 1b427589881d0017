package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlister/internal/repository"
	"github.com/Kerhoff/wishlister/internal/slug"
)

// BackfillItemSlugs assigns a slug to every item that has none. Slugs stay
// unique per wishlist using -N suffixes. It returns the number of items updated.
func (s *Service) BackfillItemSlugs(ctx context.Context) (int, error) {
	items, err := s.Items.ListMissingSlugs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list items without slug: %w", err)
	}

	updated := 0
	for _, item := range items {
		base := slug.ItemBase(item.Title)
		taken, err := s.Items.SlugsWithPrefix(ctx, item.WishlistID, base)
		if err != nil {
			return updated, fmt.Errorf("failed to list item slugs: %w", err)
		}

		done := false
		for attempt := 0; attempt < maxAttempts && !done; attempt++ {
			candidate := slug.NextItemSlug(base, taken)
			err := s.Items.UpdateSlug(ctx, item.ID, candidate)
			switch {
			case repository.IsConflict(err, repository.ConstraintItemSlug):
				taken[candidate] = true
			case err != nil:
				return updated, fmt.Errorf("failed to set slug of item %d: %w", item.ID, err)
			default:
				item.Slug = candidate
				done = true
			}
		}
		if !done {
			return updated, fmt.Errorf("failed to find a free slug for item %d", item.ID)
		}
		updated++

		s.logger.WithFields(logrus.Fields{
			"item_id":     item.ID,
			"wishlist_id": item.WishlistID,
			"slug":        item.Slug,
		}).Debug("Backfilled item slug")
	}

	s.logger.Infof("Backfilled %d item slugs", updated)
	return updated, nil
}
