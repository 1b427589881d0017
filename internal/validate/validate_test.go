package validate

import (
	"errors"
	"strings"
	"testing"
)

func fieldErrors(t *testing.T, err error) *Errors {
	t.Helper()
	if err == nil {
		return &Errors{}
	}
	var verr *Errors
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Errors, got %T", err)
	}
	return verr
}

func TestNormalizeTitle(t *testing.T) {
	tests := map[string]string{
		"  book ":  "Book",
		"ёлка":     "Ёлка",
		"":         "",
		"iPhone 6": "IPhone 6",
	}
	for in, want := range tests {
		if got := NormalizeTitle(in); got != want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"<b>bold</b> move", "bold move"},
		{"<script>alert(1)</script>safe", "safe"},
		{"fish &amp; chips", "fish & chips"},
	}
	for _, tc := range tests {
		if got := StripTags(tc.in); got != tc.want {
			t.Errorf("StripTags(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWishlist(t *testing.T) {
	tests := []struct {
		name      string
		in        WishlistInput
		wantField string
		wantMsg   string
	}{
		{"valid private", WishlistInput{Title: "gifts"}, "", ""},
		{"valid public", WishlistInput{Title: "Gifts", Description: "Things I would love", IsPublic: true}, "", ""},
		{"missing title", WishlistInput{Title: "   "}, "title", "Title is required"},
		{"long title", WishlistInput{Title: strings.Repeat("a", 80) + strings.Repeat("b", 81)}, "title", "Title must be at most 160 characters"},
		{"spam title", WishlistInput{Title: "aaaa"}, "title", "Title must not be a single repeated character"},
		{"short description", WishlistInput{Title: "Gifts", Description: "<i>short</i>"}, "description", "Description is too short"},
		{"public needs description", WishlistInput{Title: "Gifts", IsPublic: true}, "description", "Description is too short"},
		{"long event", WishlistInput{Title: "Gifts", EventName: strings.Repeat("e", 121)}, "event_name", "Event name must be at most 120 characters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			errs := fieldErrors(t, Wishlist(&in))
			if tc.wantField == "" {
				if !errs.Empty() {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			msgs := errs.Fields[tc.wantField]
			if len(msgs) != 1 || msgs[0] != tc.wantMsg {
				t.Errorf("errors[%s] = %v, want [%q]", tc.wantField, msgs, tc.wantMsg)
			}
		})
	}
}

func TestWishlistNormalizes(t *testing.T) {
	in := WishlistInput{Title: "  gifts ", Description: "<p>Birthday ideas</p>"}
	if err := Wishlist(&in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Title != "Gifts" || in.Description != "Birthday ideas" {
		t.Errorf("got %+v", in)
	}
}

func TestItem(t *testing.T) {
	tests := []struct {
		name      string
		in        ItemInput
		wantField string
	}{
		{"valid", ItemInput{Title: "book", URL: "https://shop.example/book"}, ""},
		{"valid with price", ItemInput{Title: "Book", PriceAmount: "12.50", PriceCurrency: "eur"}, ""},
		{"unicode title", ItemInput{Title: "книга"}, ""},
		{"all empty", ItemInput{}, NonField},
		{"missing title", ItemInput{URL: "https://shop.example/book"}, "title"},
		{"long title", ItemInput{Title: strings.Repeat("x", 201)}, "title"},
		{"http url", ItemInput{Title: "Book", URL: "http://shop.example/book"}, "url"},
		{"not a url", ItemInput{Title: "Book", URL: "bad"}, "url"},
		{"http image", ItemInput{Title: "Book", ImageURL: "http://img.example/a.jpg"}, "image_url"},
		{"image equals url", ItemInput{Title: "Book", URL: "https://a.example/x", ImageURL: "https://a.example/x"}, "image_url"},
		{"long note", ItemInput{Title: "Book", Note: strings.Repeat("n", 2001)}, "note"},
		{"bad currency", ItemInput{Title: "Book", PriceCurrency: "US1"}, "price_currency"},
		{"negative amount", ItemInput{Title: "Book", PriceAmount: "-1", PriceCurrency: "USD"}, "price_amount"},
		{"too many decimals", ItemInput{Title: "Book", PriceAmount: "1.234", PriceCurrency: "USD"}, "price_amount"},
		{"too many digits", ItemInput{Title: "Book", PriceAmount: "123456789", PriceCurrency: "USD"}, "price_amount"},
		{"amount without currency", ItemInput{Title: "Book", PriceAmount: "10"}, "price_currency"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			errs := fieldErrors(t, Item(&in))
			if tc.wantField == "" {
				if !errs.Empty() {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			if !errs.Has(tc.wantField) {
				t.Errorf("expected error on %q, got %v", tc.wantField, errs.Fields)
			}
		})
	}
}

func TestItemNormalizes(t *testing.T) {
	in := ItemInput{Title: " book", PriceCurrency: " usd ", PriceAmount: " 5 "}
	if err := Item(&in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Title != "Book" || in.PriceCurrency != "USD" || in.PriceAmount != "5" {
		t.Errorf("got %+v", in)
	}
}

func TestProfile(t *testing.T) {
	in := ProfileInput{DisplayName: strings.Repeat("d", 51), AvatarURL: "http://x/a.png", Icon: "🎁"}
	errs := fieldErrors(t, Profile(&in))
	if !errs.Has("display_name") || !errs.Has("avatar_url") {
		t.Errorf("unexpected errors %v", errs.Fields)
	}
	if errs.Has("icon") {
		t.Errorf("icon should be valid: %v", errs.Fields["icon"])
	}
}

func TestErrorsMessage(t *testing.T) {
	errs := &Errors{}
	errs.Add("url", "bad")
	errs.Add("title", "missing")
	if got := errs.Error(); got != "validation failed: title: missing, url: bad" {
		t.Errorf("Error() = %q", got)
	}
	if (&Errors{}).Err() != nil {
		t.Error("empty Errors should convert to nil")
	}
}
