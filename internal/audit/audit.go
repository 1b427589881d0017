// Package audit emits one structured record per security relevant or data
// mutating action.
package audit

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlister/internal/models"
)

// Event names an audited action
type Event string

const (
	WishlistCreate       Event = "wishlist.create"
	WishlistUpdate       Event = "wishlist.update"
	WishlistTogglePublic Event = "wishlist.toggle_public"
	WishlistDelete       Event = "wishlist.delete"

	ItemCreate Event = "item.create"
	ItemUpdate Event = "item.update"
	ItemDelete Event = "item.delete"

	ShareGenerate Event = "share.generate"
	ShareRevoke   Event = "share.revoke"
	ShareView     Event = "share.view"
	PublicView    Event = "public.view"

	AccessDenied Event = "access.denied"
	AccessGrant  Event = "access.grant"
	AccessRevoke Event = "access.revoke"

	ImportBulk Event = "import.bulk"
	ImportCSV  Event = "import.csv"

	FetchOK      Event = "og.fetch.ok"
	FetchDenied  Event = "og.fetch.denied"
	FetchTimeout Event = "og.fetch.timeout"
	FetchError   Event = "og.fetch.error"
)

// Logger records audit events. Implementations never fail the caller.
type Logger interface {
	Log(event Event, actor *models.User, wl *models.Wishlist, meta map[string]any)
}

// MaskToken keeps the first and last keep characters of s joined by an
// ellipsis. Empty input yields an empty string.
func MaskToken(s string, keep int) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	if keep < 0 {
		keep = 0
	}
	head := keep
	if head > len(r) {
		head = len(r)
	}
	tail := len(r) - keep
	if tail < 0 {
		tail = 0
	}
	return string(r[:head]) + "…" + string(r[tail:])
}

// JSONLogger writes each event as a single JSON object
type JSONLogger struct {
	log *logrus.Logger
	now func() time.Time
}

// NewLogger creates an audit logger writing to w
func NewLogger(w io.Writer) *JSONLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		DisableTimestamp: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "kind",
		},
	})
	return &JSONLogger{log: l, now: time.Now}
}

// Open returns an audit logger appending to path, or writing to stdout when
// path is empty. The returned closer releases the file.
func Open(path string) (*JSONLogger, io.Closer, error) {
	if path == "" {
		return NewLogger(os.Stdout), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return NewLogger(f), f, nil
}

// Log implements Logger
func (l *JSONLogger) Log(event Event, actor *models.User, wl *models.Wishlist, meta map[string]any) {
	fields := make(logrus.Fields, len(meta)+5)
	for k, v := range meta {
		fields[k] = v
	}
	fields["ts"] = l.now().Unix()
	fields["event"] = string(event)
	fields["user_id"] = nil
	fields["wishlist_id"] = nil
	fields["wishlist_slug"] = nil
	if actor != nil {
		fields["user_id"] = actor.ID
	}
	if wl != nil {
		fields["wishlist_id"] = wl.ID
		fields["wishlist_slug"] = wl.Slug
	}
	l.log.WithFields(fields).Info("audit")
}

// Record is a captured audit event
type Record struct {
	Event        Event
	UserID       *int64
	WishlistID   *int64
	WishlistSlug string
	Meta         map[string]any
}

// Recorder keeps events in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Log implements Logger
func (r *Recorder) Log(event Event, actor *models.User, wl *models.Wishlist, meta map[string]any) {
	rec := Record{Event: event, Meta: make(map[string]any, len(meta))}
	for k, v := range meta {
		rec.Meta[k] = v
	}
	if actor != nil {
		id := actor.ID
		rec.UserID = &id
	}
	if wl != nil {
		id := wl.ID
		rec.WishlistID = &id
		rec.WishlistSlug = wl.Slug
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Find returns every record of the given event
func (r *Recorder) Find(event Event) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Event == event {
			out = append(out, rec)
		}
	}
	return out
}

// Reset drops all records
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}

// Multi fans an event out to several loggers
type Multi []Logger

// Log implements Logger
func (m Multi) Log(event Event, actor *models.User, wl *models.Wishlist, meta map[string]any) {
	for _, l := range m {
		l.Log(event, actor, wl, meta)
	}
}
