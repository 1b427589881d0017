// Package slug builds URL-safe identifiers for wishlists and items and the
// random tokens used for secret share links.
package slug

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	gslug "github.com/gosimple/slug"

	"github.com/Kerhoff/wishlister/internal/models"
)

const (
	fallbackWishlist = "wishlist"
	fallbackItem     = "item"

	// hashLen is the number of hex characters used for collision suffixes
	hashLen = 8

	// itemBaseLen caps the base of an item slug before any numeric suffix
	itemBaseLen = 200

	// tokenBytes is 128 bits of randomness, 22 characters once encoded
	tokenBytes = 16
)

// Make transliterates and normalizes s into a lowercase, hyphen separated token.
func Make(s string) string {
	return gslug.MakeLang(s, "en")
}

// truncate cuts s to at most n bytes without leaving a trailing separator.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) > n {
		s = s[:n]
	}
	return strings.TrimRight(s, "-")
}

// WishlistCandidate returns the slug to try for the given attempt. Attempt 0
// is the plain slug of the title; later attempts append a short hash derived
// from the owner, the title and the attempt number. The result never exceeds
// models.WishlistSlugMaxLen.
func WishlistCandidate(title string, ownerID int64, attempt int) string {
	base := Make(title)
	if base == "" {
		base = fallbackWishlist
	}
	if attempt <= 0 {
		return truncate(base, models.WishlistSlugMaxLen)
	}
	suffix := "-" + shortHash(ownerID, title, attempt)
	return truncate(base, models.WishlistSlugMaxLen-len(suffix)) + suffix
}

func shortHash(ownerID int64, title string, attempt int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d:%s:%d", ownerID, title, attempt)))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// ItemBase returns the slug base for an item title.
func ItemBase(title string) string {
	base := truncate(Make(title), itemBaseLen)
	if base == "" {
		return fallbackItem
	}
	return base
}

// ItemCandidate returns the n-th candidate for base: n <= 1 yields base
// itself, larger values append "-n" while staying within
// models.ItemSlugMaxLen.
func ItemCandidate(base string, n int) string {
	if n <= 1 {
		return truncate(base, models.ItemSlugMaxLen)
	}
	suffix := "-" + strconv.Itoa(n)
	return truncate(base, models.ItemSlugMaxLen-len(suffix)) + suffix
}

// NextItemSlug returns the first candidate for base that is not in taken.
func NextItemSlug(base string, taken map[string]bool) string {
	for n := 1; ; n++ {
		candidate := ItemCandidate(base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// NewShareToken returns 128 random bits encoded as URL-safe base64.
func NewShareToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
