package enrich

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// siteExtractor overrides generic metadata for a specific marketplace
type siteExtractor struct {
	name    string
	match   func(host string) bool
	extract func(doc *goquery.Document, page *url.URL, res *Result)
}

var defaultExtractors = []siteExtractor{
	{name: "amazon", match: isAmazon, extract: extractAmazon},
}

func isAmazon(host string) bool {
	return strings.Contains(host, "amazon.")
}

// extractAmazon reads the product title element and picks the largest image
// from the size keyed map in data-a-dynamic-image
func extractAmazon(doc *goquery.Document, page *url.URL, res *Result) {
	if title := strings.TrimSpace(doc.Find("#productTitle").First().Text()); title != "" {
		res.Title = title
	}

	img := doc.Find("#landingImage, #imgBlkFront").First()
	if img.Length() == 0 {
		return
	}

	if best := largestDynamicImage(img.AttrOr("data-a-dynamic-image", "")); best != "" {
		res.ImageURL = resolve(page, best)
		return
	}
	for _, attr := range []string{"data-old-hires", "src"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
			res.ImageURL = resolve(page, v)
			return
		}
	}
}

// largestDynamicImage parses {"url": [width, height], ...} and returns the
// url with the biggest area
func largestDynamicImage(raw string) string {
	if raw == "" {
		return ""
	}
	var sizes map[string][]int
	if err := json.Unmarshal([]byte(raw), &sizes); err != nil {
		return ""
	}

	var (
		best     string
		bestArea = -1
	)
	for u, dims := range sizes {
		area := 0
		if len(dims) >= 2 {
			area = dims[0] * dims[1]
		}
		// ties resolve deterministically
		if area > bestArea || (area == bestArea && u < best) {
			best, bestArea = u, area
		}
	}
	return best
}
