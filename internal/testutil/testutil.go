// Package testutil contains shared testing utilities
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlister/internal/config"
)

// QuietLogger returns a logger that discards everything
func QuietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetupTestDB opens a migrated in-memory SQLite database that is closed when
// the test ends
func SetupTestDB(t *testing.T) *config.Database {
	t.Helper()
	db, err := config.NewDatabase("sqlite3", ":memory:?_foreign_keys=on", QuietLogger())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	Requests []*http.Request
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.Requests = append(m.Requests, req)
	if m.response != nil {
		m.response.Request = req
	}
	return m.response, m.err
}

// HTMLResponse builds a 200 response carrying body as HTML
func HTMLResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}
