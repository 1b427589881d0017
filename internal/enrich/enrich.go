// Package enrich extracts a title, an image and a description from product
// pages using their OpenGraph and Twitter card metadata.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/Kerhoff/wishlister/internal/audit"
	"github.com/Kerhoff/wishlister/internal/metrics"
)

const (
	// DefaultTimeout bounds a single metadata fetch
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 4 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// blocked statuses are soft failures rather than errors
var blockedStatus = map[int]bool{
	http.StatusUnauthorized:       true,
	http.StatusForbidden:          true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

var (
	titleKeys       = []string{"og:title", "twitter:title"}
	imageKeys       = []string{"twitter:image", "twitter:image:src", "og:image", "og:image:url", "og:image:secure_url"}
	descriptionKeys = []string{"og:description", "twitter:description", "description"}
)

// Result holds whatever metadata could be extracted. Empty fields mean the
// value was unavailable.
type Result struct {
	Title       string `json:"title,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Empty reports whether nothing was extracted
func (r Result) Empty() bool {
	return r.Title == "" && r.ImageURL == "" && r.Description == ""
}

// Enricher is implemented by Client
type Enricher interface {
	Enrich(ctx context.Context, rawURL string) Result
}

// Client fetches pages and extracts metadata. It never returns errors; every
// failure is logged, audited and yields an empty Result.
type Client struct {
	httpClient *http.Client
	logger     *logrus.Logger
	audit      audit.Logger
	metrics    *metrics.Metrics
	extractors []siteExtractor
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMetrics records fetch outcomes in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client
func New(logger *logrus.Logger, auditLog audit.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
		audit:      auditLog,
		extractors: defaultExtractors,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enrich fetches rawURL and extracts its metadata
func (c *Client) Enrich(ctx context.Context, rawURL string) Result {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{}
	}

	start := time.Now()
	res, status, err := c.fetch(ctx, u)
	elapsed := time.Since(start)

	meta := map[string]any{
		"host": u.Host,
		"ms":   elapsed.Milliseconds(),
	}
	entry := c.logger.WithFields(logrus.Fields{"host": u.Host, "ms": elapsed.Milliseconds()})

	switch {
	case err == nil:
		meta["has_title"] = res.Title != ""
		meta["has_image"] = res.ImageURL != ""
		c.record(audit.FetchOK, "ok", meta, elapsed)
		entry.Debug("Fetched page metadata")
		return res
	case blockedStatus[status]:
		meta["status"] = status
		c.record(audit.FetchDenied, "denied", meta, elapsed)
		entry.WithField("status", status).Info("Page fetch was blocked")
	case isTimeout(err):
		c.record(audit.FetchTimeout, "timeout", meta, elapsed)
		entry.Warn("Page fetch timed out")
	default:
		meta["error"] = err.Error()
		if status != 0 {
			meta["status"] = status
		}
		c.record(audit.FetchError, "error", meta, elapsed)
		entry.WithError(err).Warn("Page fetch failed")
	}
	return Result{}
}

func (c *Client) record(event audit.Event, outcome string, meta map[string]any, elapsed time.Duration) {
	if c.audit != nil {
		c.audit.Log(event, nil, nil, meta)
	}
	c.metrics.ObserveFetch(outcome, elapsed)
}

var errStatus = errors.New("unexpected status")

func (c *Client) fetch(ctx context.Context, u *url.URL) (Result, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ru;q=0.8")
	req.Header.Set("Referer", u.Scheme+"://"+u.Host)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Result{}, resp.StatusCode, fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return Result{}, resp.StatusCode, fmt.Errorf("failed to detect charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Result{}, resp.StatusCode, fmt.Errorf("failed to parse html: %w", err)
	}

	page := u
	if resp.Request != nil && resp.Request.URL != nil {
		page = resp.Request.URL
	}
	return c.extract(doc, page), resp.StatusCode, nil
}

func (c *Client) extract(doc *goquery.Document, page *url.URL) Result {
	res := Result{
		Title:       firstMeta(doc, titleKeys),
		Description: firstMeta(doc, descriptionKeys),
	}
	if res.Title == "" {
		res.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if img := firstMeta(doc, imageKeys); img != "" {
		res.ImageURL = resolve(page, img)
	}

	host := strings.ToLower(page.Hostname())
	for _, ex := range c.extractors {
		if ex.match(host) {
			ex.extract(doc, page, &res)
		}
	}
	return res
}

// firstMeta returns the first non-empty content for keys in priority order,
// matching either the property or the name attribute
func firstMeta(doc *goquery.Document, keys []string) string {
	for _, key := range keys {
		if v := metaContent(doc, key); v != "" {
			return v
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, key string) string {
	var out string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		prop, _ := s.Attr("property")
		name, _ := s.Attr("name")
		if !strings.EqualFold(prop, key) && !strings.EqualFold(name, key) {
			return true
		}
		if content := strings.TrimSpace(s.AttrOr("content", "")); content != "" {
			out = content
			return false
		}
		return true
	})
	return out
}

// resolve makes ref absolute against page; unparsable refs are dropped
func resolve(page *url.URL, ref string) string {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return page.ResolveReference(r).String()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
