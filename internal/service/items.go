package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlister/internal/audit"
	"github.com/Kerhoff/wishlister/internal/enrich"
	"github.com/Kerhoff/wishlister/internal/importer"
	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/repository"
	"github.com/Kerhoff/wishlister/internal/slug"
	"github.com/Kerhoff/wishlister/internal/validate"
)

// ItemPatch holds optional item fields
type ItemPatch struct {
	Title         *string `json:"title"`
	URL           *string `json:"url"`
	ImageURL      *string `json:"image_url"`
	Note          *string `json:"note"`
	PriceCurrency *string `json:"price_currency"`
	PriceAmount   *string `json:"price_amount"`
	IsPurchased   *bool   `json:"is_purchased"`
	IsReserved    *bool   `json:"is_reserved"`
}

func (p ItemPatch) input(item *models.Item) validate.ItemInput {
	in := validate.ItemInput{
		Title:         item.Title,
		URL:           item.URL,
		ImageURL:      item.ImageURL,
		Note:          item.Note,
		PriceCurrency: item.PriceCurrency,
	}
	if item.PriceAmount != nil {
		in.PriceAmount = *item.PriceAmount
	}
	setString(&in.Title, p.Title)
	setString(&in.URL, p.URL)
	setString(&in.ImageURL, p.ImageURL)
	setString(&in.Note, p.Note)
	setString(&in.PriceCurrency, p.PriceCurrency)
	setString(&in.PriceAmount, p.PriceAmount)
	return in
}

func applyInput(item *models.Item, in validate.ItemInput) {
	item.Title = in.Title
	item.URL = in.URL
	item.ImageURL = in.ImageURL
	item.Note = in.Note
	item.PriceCurrency = in.PriceCurrency
	item.PriceAmount = nil
	if in.PriceAmount != "" {
		amount := in.PriceAmount
		item.PriceAmount = &amount
	}
}

// CreateItem adds an item to a wishlist actor may edit
func (s *Service) CreateItem(ctx context.Context, actor *models.User, wishlistSlug string, patch ItemPatch) (*models.Item, error) {
	wl, err := s.Editable(ctx, actor, wishlistSlug)
	if err != nil {
		return nil, err
	}

	in := patch.input(&models.Item{})
	if err := validate.Item(&in); err != nil {
		return nil, err
	}

	item := &models.Item{}
	applyInput(item, in)
	if patch.IsPurchased != nil {
		item.IsPurchased = *patch.IsPurchased
	}
	if patch.IsReserved != nil {
		item.IsReserved = *patch.IsReserved
	}
	return s.createItem(ctx, actor, wl, item, "manual")
}

// ItemURLs returns the URLs already on wl
func (s *Service) ItemURLs(ctx context.Context, wl *models.Wishlist) (map[string]bool, error) {
	urls, err := s.Items.URLs(ctx, wl.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item urls: %w", err)
	}
	return urls, nil
}

// ImportItem validates one imported row and stores it. The caller has
// already checked edit rights on wl.
func (s *Service) ImportItem(ctx context.Context, actor *models.User, wl *models.Wishlist, in validate.ItemInput) (*models.Item, error) {
	if err := validate.Item(&in); err != nil {
		return nil, err
	}
	item := &models.Item{}
	applyInput(item, in)
	return s.createItem(ctx, actor, wl, item, "import")
}

// createItem assigns the next free slug on the wishlist and inserts the item,
// moving on to the following suffix when a concurrent insert wins
func (s *Service) createItem(ctx context.Context, actor *models.User, wl *models.Wishlist, item *models.Item, source string) (*models.Item, error) {
	item.WishlistID = wl.ID
	if actor != nil && actor.ID != 0 {
		id := actor.ID
		item.CreatedByID = &id
	}

	base := slug.ItemBase(item.Title)
	taken, err := s.Items.SlugsWithPrefix(ctx, wl.ID, base)
	if err != nil {
		return nil, fmt.Errorf("failed to list item slugs: %w", err)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		item.Slug = slug.NextItemSlug(base, taken)
		created, err := s.Items.Create(ctx, item)
		if repository.IsConflict(err, repository.ConstraintItemSlug) {
			taken[item.Slug] = true
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create item: %w", err)
		}

		s.audit.Log(audit.ItemCreate, actor, wl, map[string]any{
			"item_id":   created.ID,
			"item_slug": created.Slug,
			"source":    source,
		})
		return created, nil
	}
	return nil, fmt.Errorf("failed to find a free item slug for %q after %d attempts", item.Title, maxAttempts)
}

// editableItem loads an item and checks actor may change it
func (s *Service) editableItem(ctx context.Context, actor *models.User, wishlistSlug, itemSlug, action string) (*models.Wishlist, *models.Item, error) {
	wl, err := s.wishlistBySlug(ctx, wishlistSlug)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.Items.GetBySlug(ctx, wl.ID, itemSlug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get item %s: %w", itemSlug, err)
	}
	if item == nil {
		view, err := s.Policy.View(ctx, actor, wl)
		if err != nil {
			return nil, nil, err
		}
		if !view.Allowed {
			return nil, nil, s.denied(actor, wl, action, view.Reason)
		}
		return nil, nil, ErrNotFound
	}

	res, err := s.Policy.EditItem(ctx, actor, wl, item)
	if err != nil {
		return nil, nil, err
	}
	if !res.Allowed {
		return nil, nil, s.denied(actor, wl, action, res.Reason)
	}
	return wl, item, nil
}

// UpdateItem applies patch to an item. The item slug never changes.
func (s *Service) UpdateItem(ctx context.Context, actor *models.User, wishlistSlug, itemSlug string, patch ItemPatch) (*models.Item, error) {
	wl, item, err := s.editableItem(ctx, actor, wishlistSlug, itemSlug, "item-update")
	if err != nil {
		return nil, err
	}

	in := patch.input(item)
	if err := validate.Item(&in); err != nil {
		return nil, err
	}

	changes := map[string]change{}
	track(changes, "title", item.Title, in.Title)
	track(changes, "url", item.URL, in.URL)
	track(changes, "image_url", item.ImageURL, in.ImageURL)
	track(changes, "note", item.Note, in.Note)
	track(changes, "price_currency", item.PriceCurrency, in.PriceCurrency)

	applyInput(item, in)
	if patch.IsPurchased != nil {
		track(changes, "is_purchased", item.IsPurchased, *patch.IsPurchased)
		item.IsPurchased = *patch.IsPurchased
	}
	if patch.IsReserved != nil {
		track(changes, "is_reserved", item.IsReserved, *patch.IsReserved)
		item.IsReserved = *patch.IsReserved
	}

	updated, err := s.Items.Update(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to update item %d: %w", item.ID, err)
	}
	s.audit.Log(audit.ItemUpdate, actor, wl, map[string]any{
		"item_id":   updated.ID,
		"item_slug": updated.Slug,
		"changes":   changes,
	})
	return updated, nil
}

// DeleteItem removes an item
func (s *Service) DeleteItem(ctx context.Context, actor *models.User, wishlistSlug, itemSlug string) error {
	wl, item, err := s.editableItem(ctx, actor, wishlistSlug, itemSlug, "item-delete")
	if err != nil {
		return err
	}
	if err := s.Items.Delete(ctx, item.ID); err != nil {
		return fmt.Errorf("failed to delete item %d: %w", item.ID, err)
	}
	s.audit.Log(audit.ItemDelete, actor, wl, map[string]any{
		"item_id":   item.ID,
		"item_slug": item.Slug,
	})
	return nil
}

// PreviewEnrich fetches metadata for rawURL without storing anything
func (s *Service) PreviewEnrich(ctx context.Context, rawURL string) (enrich.Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		errs := &validate.Errors{}
		errs.Add("url", "URL is required")
		return enrich.Result{}, errs
	}
	return s.Enricher.Enrich(ctx, rawURL), nil
}

// ---- Imports ----

// BulkImport creates items from pasted URLs on a wishlist actor may edit
func (s *Service) BulkImport(ctx context.Context, actor *models.User, wishlistSlug, text string) (*importer.Summary, error) {
	wl, err := s.Editable(ctx, actor, wishlistSlug)
	if err != nil {
		return nil, err
	}
	summary, err := s.Importer.Bulk(ctx, actor, wl, text)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"wishlist_id": wl.ID,
		"created":     summary.Created,
		"skipped":     summary.Skipped,
	}).Info("Bulk import finished")
	return summary, nil
}

// UploadCSV parses a CSV file for a wishlist actor may edit and returns the
// stored job with a guessed mapping
func (s *Service) UploadCSV(ctx context.Context, actor *models.User, wishlistSlug string, r io.Reader) (*importer.Job, error) {
	wl, err := s.Editable(ctx, actor, wishlistSlug)
	if err != nil {
		return nil, err
	}
	return s.Importer.Upload(ctx, actor, wl, r)
}

// MapCSV replays a stored job with the chosen column mapping
func (s *Service) MapCSV(ctx context.Context, actor *models.User, wishlistSlug, jobID string, m importer.Mapping) (*importer.Summary, error) {
	wl, err := s.Editable(ctx, actor, wishlistSlug)
	if err != nil {
		return nil, err
	}
	return s.Importer.Map(ctx, actor, wl, jobID, m)
}
