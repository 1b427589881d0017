// Package importer turns pasted URL lists and uploaded CSV files into
// wishlist items.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Kerhoff/wishlister/internal/audit"
	"github.com/Kerhoff/wishlister/internal/enrich"
	"github.com/Kerhoff/wishlister/internal/metrics"
	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/validate"
)

var (
	ErrJobNotFound    = errors.New("import job not found")
	ErrUploadTooLarge = errors.New("upload exceeds the size limit")
	ErrEmptyUpload    = errors.New("no headers or rows found")
	ErrInvalidCSV     = errors.New("invalid csv")
)

// Row statuses
const (
	StatusCreated = "created"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Row reasons
const (
	ReasonIncorrectURL = "incorrect URL"
	ReasonDuplicate    = "already exists"
	ReasonPresent      = "already on the wishlist"
	ReasonNoTitle      = "no title found"
	ReasonEmptyURL     = "empty URL"
	ReasonInvalid      = "validation failed"
)

// RowResult describes what happened to one input line
type RowResult struct {
	Line     int                 `json:"line"`
	URL      string              `json:"url"`
	Status   string              `json:"status"`
	Reason   string              `json:"reason,omitempty"`
	ItemSlug string              `json:"item_slug,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

// Summary is the outcome of one import. Skipped counts every row that did
// not produce an item, errors included.
type Summary struct {
	Created int         `json:"created"`
	Skipped int         `json:"skipped"`
	Errors  int         `json:"errors"`
	Results []RowResult `json:"results"`
}

func (s *Summary) add(r RowResult) {
	switch r.Status {
	case StatusCreated:
		s.Created++
	case StatusError:
		s.Errors++
		s.Skipped++
	default:
		s.Skipped++
	}
	s.Results = append(s.Results, r)
}

func (s *Summary) sortResults() {
	sort.SliceStable(s.Results, func(i, j int) bool { return s.Results[i].Line < s.Results[j].Line })
}

// ItemSink persists imported items
type ItemSink interface {
	// ItemURLs returns the URLs already present on the wishlist
	ItemURLs(ctx context.Context, wl *models.Wishlist) (map[string]bool, error)
	// ImportItem validates in and creates the item; validation failures are
	// returned as *validate.Errors
	ImportItem(ctx context.Context, actor *models.User, wl *models.Wishlist, in validate.ItemInput) (*models.Item, error)
}

// Options tunes the pipeline
type Options struct {
	Workers   int
	RateLimit float64
	RowCap    int
	MaxBytes  int64
}

// Pipeline runs bulk and CSV imports
type Pipeline struct {
	sink     ItemSink
	enricher enrich.Enricher
	jobs     JobStore
	audit    audit.Logger
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	opts     Options
	now      func() time.Time
}

// NewPipeline creates a Pipeline
func NewPipeline(sink ItemSink, enricher enrich.Enricher, jobs JobStore, auditLog audit.Logger,
	m *metrics.Metrics, logger *logrus.Logger, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.RowCap <= 0 {
		opts.RowCap = 1000
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 2 << 20
	}
	return &Pipeline{
		sink:     sink,
		enricher: enricher,
		jobs:     jobs,
		audit:    auditLog,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// MaxBytes returns the configured upload limit
func (p *Pipeline) MaxBytes() int64 {
	return p.opts.MaxBytes
}

// ---- Bulk ----

// Bulk imports newline separated URLs, enriching each one for a title and
// image. One bad line never aborts the batch.
func (p *Pipeline) Bulk(ctx context.Context, actor *models.User, wl *models.Wishlist, text string) (*Summary, error) {
	candidates, rejected := ParseBulk(text)

	summary := &Summary{}
	for _, r := range rejected {
		summary.add(r)
	}

	present, err := p.sink.ItemURLs(ctx, wl)
	if err != nil {
		return nil, err
	}

	var todo []Candidate
	for _, c := range candidates {
		if present[c.URL] {
			summary.add(RowResult{Line: c.Line, URL: c.URL, Status: StatusSkipped, Reason: ReasonPresent})
			continue
		}
		// items only accept https, so other schemes are rejected before any fetch
		if !validate.IsHTTPSURL(c.URL) {
			summary.add(RowResult{
				Line:   c.Line,
				URL:    c.URL,
				Status: StatusError,
				Reason: ReasonInvalid,
				Errors: map[string][]string{"url": {validate.MsgHTTPSURL}},
			})
			continue
		}
		todo = append(todo, c)
	}

	enriched, err := p.enrichAll(ctx, todo)
	if err != nil {
		return nil, err
	}

	for i, c := range todo {
		meta := enriched[i]
		if meta.Title == "" {
			summary.add(RowResult{Line: c.Line, URL: c.URL, Status: StatusSkipped, Reason: ReasonNoTitle})
			continue
		}
		in := validate.ItemInput{
			Title:    truncateRunes(meta.Title, models.ItemTitleMaxLen),
			URL:      c.URL,
			ImageURL: meta.ImageURL,
		}
		// the image is optional, so one that would fail validation is dropped
		if in.ImageURL != "" && (!validate.IsHTTPSURL(in.ImageURL) || in.ImageURL == in.URL) {
			in.ImageURL = ""
		}
		summary.add(p.createRow(ctx, actor, wl, c.Line, in))
	}

	summary.sortResults()
	p.metrics.ObserveImport("bulk", summary.Created, summary.Skipped)
	p.audit.Log(audit.ImportBulk, actor, wl, map[string]any{
		"created": summary.Created,
		"skipped": summary.Skipped,
		"errors":  summary.Errors,
		"lines":   len(summary.Results),
	})
	return summary, nil
}

// enrichAll fetches metadata for every candidate with a bounded, rate
// limited worker pool. Results keep the candidate order.
func (p *Pipeline) enrichAll(ctx context.Context, todo []Candidate) ([]enrich.Result, error) {
	results := make([]enrich.Result, len(todo))
	if len(todo) == 0 {
		return results, nil
	}

	limiter := rate.NewLimiter(rate.Limit(p.opts.RateLimit), 1)
	jobs := make(chan int)

	workers := p.opts.Workers
	if workers > len(todo) {
		workers = len(todo)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.enricher.Enrich(ctx, todo[i].URL)
			}
		}()
	}

	var waitErr error
	for i := range todo {
		if err := limiter.Wait(ctx); err != nil {
			waitErr = err
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if waitErr != nil {
		return nil, fmt.Errorf("enrichment interrupted: %w", waitErr)
	}
	return results, nil
}

// createRow hands one validated row to the sink and reports the outcome
func (p *Pipeline) createRow(ctx context.Context, actor *models.User, wl *models.Wishlist, line int, in validate.ItemInput) RowResult {
	res := RowResult{Line: line, URL: in.URL}

	item, err := p.sink.ImportItem(ctx, actor, wl, in)
	if err != nil {
		res.Status = StatusError
		var verr *validate.Errors
		if errors.As(err, &verr) {
			res.Reason = ReasonInvalid
			res.Errors = verr.Fields
			return res
		}
		p.logger.WithError(err).WithFields(logrus.Fields{
			"wishlist_id": wl.ID,
			"line":        line,
		}).Error("Failed to import item")
		res.Reason = "database error: " + err.Error()
		return res
	}

	res.Status = StatusCreated
	res.ItemSlug = item.Slug
	return res
}

// ---- CSV ----

// Upload reads a CSV file, parses it and stores a job for the mapping step
func (p *Pipeline) Upload(ctx context.Context, actor *models.User, wl *models.Wishlist, r io.Reader) (*Job, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > p.opts.MaxBytes {
		return nil, ErrUploadTooLarge
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyUpload
	}

	headers, rows, err := ParseCSV(DecodeCSV(data), p.opts.RowCap)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:         uuid.NewString(),
		WishlistID: wl.ID,
		Headers:    headers,
		Rows:       rows,
		Guess:      GuessMapping(headers),
		CreatedAt:  p.now().UTC(),
	}
	if actor != nil {
		job.UserID = actor.ID
	}
	if err := p.jobs.Put(ctx, job); err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"wishlist_id": wl.ID,
		"rows":        len(rows),
	}).Info("Stored CSV import job")
	return job, nil
}

// Job returns a stored job belonging to wl
func (p *Pipeline) Job(ctx context.Context, wl *models.Wishlist, jobID string) (*Job, error) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.WishlistID != wl.ID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Map applies the column mapping to a stored job and creates the items. The
// job is consumed unless the mapping itself is invalid.
func (p *Pipeline) Map(ctx context.Context, actor *models.User, wl *models.Wishlist, jobID string, m Mapping) (*Summary, error) {
	job, err := p.Job(ctx, wl, jobID)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(job.Headers); err != nil {
		return nil, err
	}

	present, err := p.sink.ItemURLs(ctx, wl)
	if err != nil {
		return nil, err
	}

	cols := m.columns(job.Headers)
	summary := &Summary{}
	for i, row := range job.Rows {
		// header is line 1
		line := i + 2
		rawURL := cell(row, cols.url)
		if rawURL == "" {
			summary.add(RowResult{Line: line, Status: StatusSkipped, Reason: ReasonEmptyURL})
			continue
		}
		if present[rawURL] {
			summary.add(RowResult{Line: line, URL: rawURL, Status: StatusSkipped, Reason: ReasonPresent})
			continue
		}

		title := cell(row, cols.title)
		if title == "" {
			title = truncateRunes(rawURL, models.ItemTitleMaxLen)
		}
		res := p.createRow(ctx, actor, wl, line, validate.ItemInput{
			Title:    title,
			URL:      rawURL,
			ImageURL: cell(row, cols.image),
			Note:     cell(row, cols.note),
		})
		if res.Status == StatusCreated {
			present[rawURL] = true
		}
		summary.add(res)
	}

	if err := p.jobs.Delete(ctx, job.ID); err != nil {
		p.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to delete import job")
	}

	p.metrics.ObserveImport("csv", summary.Created, summary.Skipped)
	p.audit.Log(audit.ImportCSV, actor, wl, map[string]any{
		"created": summary.Created,
		"skipped": summary.Skipped,
		"errors":  summary.Errors,
		"rows":    len(job.Rows),
		"job_id":  job.ID,
	})
	return summary, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
