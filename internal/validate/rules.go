package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	descriptionMinLen = 10
	eventNameMaxLen   = 120
	noteMaxLen        = 2000
	currencyMaxLen    = 10

	displayNameMaxLen = 50
	bioMaxLen         = 500
	iconMaxLen        = 16

	titleMaxLenWishlist = 160
	titleMaxLenItem     = 200
)

var (
	amountRe   = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)
	currencyRe = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// rule checks a single field and returns a message, or "" when valid
type rule[T any] struct {
	field string
	check func(*T) string
}

func run[T any](in *T, rules []rule[T]) error {
	errs := &Errors{}
	for _, r := range rules {
		if r.field != NonField && errs.Has(r.field) {
			continue
		}
		if msg := r.check(in); msg != "" {
			errs.Add(r.field, msg)
		}
	}
	return errs.Err()
}

// ---- Wishlist ----

// WishlistInput holds the editable wishlist fields
type WishlistInput struct {
	Title       string
	Description string
	IsPublic    bool
	EventName   string
	EventDate   *time.Time
}

var wishlistRules = []rule[WishlistInput]{
	{"title", func(in *WishlistInput) string {
		if in.Title == "" {
			return "Title is required"
		}
		return ""
	}},
	{"title", func(in *WishlistInput) string {
		if runeLen(in.Title) > titleMaxLenWishlist {
			return fmt.Sprintf("Title must be at most %d characters", titleMaxLenWishlist)
		}
		return ""
	}},
	{"title", func(in *WishlistInput) string {
		if repeatedChar(in.Title) {
			return "Title must not be a single repeated character"
		}
		return ""
	}},
	{"description", func(in *WishlistInput) string {
		n := runeLen(in.Description)
		if n > 0 && n < descriptionMinLen {
			return "Description is too short"
		}
		return ""
	}},
	{"description", func(in *WishlistInput) string {
		if in.IsPublic && runeLen(in.Description) < descriptionMinLen {
			return "Description is too short"
		}
		return ""
	}},
	{"event_name", func(in *WishlistInput) string {
		if runeLen(in.EventName) > eventNameMaxLen {
			return fmt.Sprintf("Event name must be at most %d characters", eventNameMaxLen)
		}
		return ""
	}},
}

// Wishlist normalizes in and checks it
func Wishlist(in *WishlistInput) error {
	in.Title = NormalizeTitle(in.Title)
	in.Description = StripTags(in.Description)
	in.EventName = strings.TrimSpace(in.EventName)
	return run(in, wishlistRules)
}

// ---- Item ----

// ItemInput holds the editable item fields
type ItemInput struct {
	Title         string
	URL           string
	ImageURL      string
	Note          string
	PriceCurrency string
	PriceAmount   string
}

var itemRules = []rule[ItemInput]{
	{NonField, func(in *ItemInput) string {
		if in.Title == "" && in.URL == "" && in.Note == "" && in.ImageURL == "" {
			return "Fill in at least one field"
		}
		return ""
	}},
	{"title", func(in *ItemInput) string {
		if in.Title == "" {
			return "Title is required"
		}
		return ""
	}},
	{"title", func(in *ItemInput) string {
		if runeLen(in.Title) > titleMaxLenItem {
			return fmt.Sprintf("Title must be at most %d characters", titleMaxLenItem)
		}
		return ""
	}},
	{"url", func(in *ItemInput) string {
		if in.URL != "" && !IsHTTPSURL(in.URL) {
			return MsgHTTPSURL
		}
		return ""
	}},
	{"image_url", func(in *ItemInput) string {
		if in.ImageURL != "" && !IsHTTPSURL(in.ImageURL) {
			return MsgHTTPSURL
		}
		return ""
	}},
	{"image_url", func(in *ItemInput) string {
		if in.ImageURL != "" && in.ImageURL == in.URL {
			return "Image URL must differ from the product URL"
		}
		return ""
	}},
	{"note", func(in *ItemInput) string {
		if runeLen(in.Note) > noteMaxLen {
			return fmt.Sprintf("Note must be at most %d characters", noteMaxLen)
		}
		return ""
	}},
	{"price_currency", func(in *ItemInput) string {
		if in.PriceCurrency != "" && !currencyRe.MatchString(in.PriceCurrency) {
			return fmt.Sprintf("Currency must be up to %d letters", currencyMaxLen)
		}
		return ""
	}},
	{"price_amount", func(in *ItemInput) string {
		if in.PriceAmount == "" {
			return ""
		}
		if strings.HasPrefix(in.PriceAmount, "-") {
			return "Price must not be negative"
		}
		if !amountRe.MatchString(in.PriceAmount) {
			return "Enter a number with at most 8 digits and 2 decimal places"
		}
		return ""
	}},
	{"price_currency", func(in *ItemInput) string {
		if in.PriceAmount != "" && in.PriceCurrency == "" {
			return "Currency is required when a price is set"
		}
		return ""
	}},
}

// Item normalizes in and checks it
func Item(in *ItemInput) error {
	in.Title = NormalizeTitle(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Note = StripTags(in.Note)
	in.PriceCurrency = strings.ToUpper(strings.TrimSpace(in.PriceCurrency))
	in.PriceAmount = strings.TrimSpace(in.PriceAmount)
	return run(in, itemRules)
}

// ---- Profile ----

// ProfileInput holds the editable profile fields
type ProfileInput struct {
	DisplayName string
	Bio         string
	AvatarURL   string
	Icon        string
}

var profileRules = []rule[ProfileInput]{
	{"display_name", func(in *ProfileInput) string {
		if runeLen(in.DisplayName) > displayNameMaxLen {
			return fmt.Sprintf("Display name must be at most %d characters", displayNameMaxLen)
		}
		return ""
	}},
	{"bio", func(in *ProfileInput) string {
		if runeLen(in.Bio) > bioMaxLen {
			return fmt.Sprintf("Bio must be at most %d characters", bioMaxLen)
		}
		return ""
	}},
	{"avatar_url", func(in *ProfileInput) string {
		if in.AvatarURL != "" && !IsHTTPSURL(in.AvatarURL) {
			return MsgHTTPSURL
		}
		return ""
	}},
	{"icon", func(in *ProfileInput) string {
		if runeLen(in.Icon) > iconMaxLen {
			return fmt.Sprintf("Icon must be at most %d characters", iconMaxLen)
		}
		return ""
	}},
}

// Profile normalizes in and checks it
func Profile(in *ProfileInput) error {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Bio = StripTags(in.Bio)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	in.Icon = strings.TrimSpace(in.Icon)
	return run(in, profileRules)
}
