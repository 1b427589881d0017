package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Kerhoff/wishlister/internal/audit"
	"github.com/Kerhoff/wishlister/internal/enrich"
	"github.com/Kerhoff/wishlister/internal/importer"
	"github.com/Kerhoff/wishlister/internal/metrics"
	"github.com/Kerhoff/wishlister/internal/service"
	"github.com/Kerhoff/wishlister/internal/testutil"
)

type stubEnricher map[string]enrich.Result

func (e stubEnricher) Enrich(_ context.Context, rawURL string) enrich.Result {
	return e[rawURL]
}

type testEnv struct {
	srv   *httptest.Server
	audit *audit.Recorder
	svc   *service.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rec := audit.NewRecorder()
	m := metrics.New()
	logger := testutil.QuietLogger()

	en := stubEnricher{"https://shop.example.com/lamp": {Title: "Desk lamp", ImageURL: "https://cdn.example.com/lamp.jpg"}}
	svc := service.New(logger, service.NewSQLRepositories(db.DB), rec, m, en)
	svc.AttachImporter(importer.NewMemoryStore(time.Hour), importer.Options{
		Workers:   2,
		RateLimit: 1000,
		RowCap:    1000,
		MaxBytes:  1 << 12,
	})

	server := NewServer(svc, logger, Options{
		SessionSecret:      strings.Repeat("s", 32),
		RateLimitPerMinute: 1000,
		Metrics:            m,
	})
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, audit: rec, svc: svc}
}

// client is one browser with its own cookie jar
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (e *testEnv) client(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, base: e.srv.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		c.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *client) send(req *http.Request) (int, []byte) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatal(err)
	}
	return resp.StatusCode, data
}

func (c *client) mustDo(method, path string, body any, want int, dst any) {
	c.t.Helper()
	status, data := c.do(method, path, body)
	if status != want {
		c.t.Fatalf("%s %s = %d (%s), want %d", method, path, status, data, want)
	}
	if dst != nil {
		if err := json.Unmarshal(data, dst); err != nil {
			c.t.Fatalf("decode %s: %v", data, err)
		}
	}
}

func (c *client) register(email string) int64 {
	c.t.Helper()
	var user struct {
		ID int64 `json:"id"`
	}
	c.mustDo(http.MethodPost, "/auth/register", map[string]string{"email": email, "password": "correct horse"}, http.StatusCreated, &user)
	return user.ID
}

func TestSharedViewerGetsNotFoundOnAddItem(t *testing.T) {
	env := newTestEnv(t)
	owner := env.client(t)
	viewer := env.client(t)

	owner.register("owner@example.com")
	viewerID := viewer.register("viewer@example.com")

	var wl struct {
		Slug string `json:"slug"`
	}
	owner.mustDo(http.MethodPost, "/api/wishlists", map[string]any{"title": "Gifts", "is_public": false}, http.StatusCreated, &wl)
	owner.mustDo(http.MethodPost, "/api/wishlists/"+wl.Slug+"/items", map[string]any{"title": "Book", "url": "https://books.example.com/1"}, http.StatusCreated, nil)
	owner.mustDo(http.MethodPut, "/api/wishlists/"+wl.Slug+"/access", map[string]any{"email": "viewer@example.com", "role": "view"}, http.StatusOK, nil)

	var view struct {
		CanEdit  bool `json:"can_edit"`
		Wishlist struct {
			Items []struct {
				Title string `json:"title"`
			} `json:"items"`
		} `json:"wishlist"`
	}
	viewer.mustDo(http.MethodGet, "/api/wishlists/"+wl.Slug, nil, http.StatusOK, &view)
	if view.CanEdit || len(view.Wishlist.Items) != 1 || view.Wishlist.Items[0].Title != "Book" {
		t.Errorf("unexpected viewer view %+v", view)
	}

	env.audit.Reset()
	viewer.mustDo(http.MethodPost, "/api/wishlists/"+wl.Slug+"/items", map[string]any{"title": "Pen"}, http.StatusNotFound, nil)

	denied := env.audit.Find(audit.AccessDenied)
	if len(denied) != 1 || *denied[0].UserID != viewerID {
		t.Fatalf("access.denied records = %+v", denied)
	}

	// private wishlists look missing to strangers and anonymous visitors
	stranger := env.client(t)
	stranger.register("stranger@example.com")
	stranger.mustDo(http.MethodGet, "/api/wishlists/"+wl.Slug, nil, http.StatusNotFound, nil)
	anon := env.client(t)
	anon.mustDo(http.MethodGet, "/api/wishlists/"+wl.Slug, nil, http.StatusNotFound, nil)
	anon.mustDo(http.MethodGet, "/p/"+wl.Slug, nil, http.StatusNotFound, nil)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	c.mustDo(http.MethodGet, "/auth/me", nil, http.StatusUnauthorized, nil)
	c.mustDo(http.MethodGet, "/api/wishlists", nil, http.StatusUnauthorized, nil)

	c.register("alice@example.com")
	c.mustDo(http.MethodPost, "/auth/register", map[string]string{"email": "alice@example.com", "password": "correct horse"}, http.StatusConflict, nil)

	var me struct {
		Email string `json:"email"`
	}
	c.mustDo(http.MethodGet, "/auth/me", nil, http.StatusOK, &me)
	if me.Email != "alice@example.com" {
		t.Errorf("me = %+v", me)
	}

	c.mustDo(http.MethodPost, "/auth/logout", nil, http.StatusNoContent, nil)
	c.mustDo(http.MethodGet, "/auth/me", nil, http.StatusUnauthorized, nil)

	c.mustDo(http.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "nope nope"}, http.StatusUnauthorized, nil)
	c.mustDo(http.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "correct horse"}, http.StatusOK, nil)
	c.mustDo(http.MethodGet, "/auth/me", nil, http.StatusOK, nil)
}

func TestWishlistValidationAndConflicts(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice@example.com")

	var verr struct {
		Errors map[string][]string `json:"errors"`
	}
	c.mustDo(http.MethodPost, "/api/wishlists", map[string]any{"title": ""}, http.StatusBadRequest, &verr)
	if len(verr.Errors["title"]) == 0 {
		t.Errorf("errors = %+v", verr.Errors)
	}

	c.mustDo(http.MethodPost, "/api/wishlists", map[string]any{"title": "Gifts"}, http.StatusCreated, nil)
	c.mustDo(http.MethodPost, "/api/wishlists", map[string]any{"title": "gifts"}, http.StatusConflict, nil)

	status, _ := c.do(http.MethodPost, "/api/wishlists", nil)
	if status != http.StatusBadRequest {
		t.Errorf("empty body = %d, want 400", status)
	}

	var page struct {
		Total int `json:"total"`
	}
	c.mustDo(http.MethodGet, "/api/wishlists?q=gif&sort=title", nil, http.StatusOK, &page)
	if page.Total != 1 {
		t.Errorf("total = %d", page.Total)
	}
}

func TestShareTokenAndPublicViews(t *testing.T) {
	env := newTestEnv(t)
	owner := env.client(t)
	owner.register("owner@example.com")

	var wl struct {
		Slug string `json:"slug"`
	}
	owner.mustDo(http.MethodPost, "/api/wishlists", map[string]any{"title": "Secret"}, http.StatusCreated, &wl)

	var share struct {
		Token string `json:"token"`
		Path  string `json:"path"`
	}
	owner.mustDo(http.MethodPost, "/api/wishlists/"+wl.Slug+"/share", nil, http.StatusOK, &share)
	if share.Path != "/s/"+share.Token {
		t.Errorf("share = %+v", share)
	}

	anon := env.client(t)
	var shared struct {
		Title      string  `json:"title"`
		ViewCount  int     `json:"view_count"`
		ShareToken *string `json:"share_token"`
	}
	anon.mustDo(http.MethodGet, share.Path, nil, http.StatusOK, &shared)
	if shared.Title != "Secret" || shared.ViewCount != 1 || shared.ShareToken != nil {
		t.Errorf("shared view = %+v", shared)
	}

	owner.mustDo(http.MethodDelete, "/api/wishlists/"+wl.Slug+"/share", nil, http.StatusNoContent, nil)
	anon.mustDo(http.MethodGet, share.Path, nil, http.StatusNotFound, nil)

	owner.mustDo(http.MethodPatch, "/api/wishlists/"+wl.Slug, map[string]any{
		"is_public":   true,
		"description": "Everything on my list",
	}, http.StatusOK, nil)
	anon.mustDo(http.MethodGet, "/p/"+wl.Slug, nil, http.StatusOK, nil)
	anon.mustDo(http.MethodGet, "/api/wishlists/"+wl.Slug, nil, http.StatusOK, nil)

	status, body := anon.do(http.MethodGet, "/sitemap.xml", nil)
	if status != http.StatusOK || !strings.Contains(string(body), "/p/"+wl.Slug+"</loc>") {
		t.Errorf("sitemap = %d %s", status, body)
	}
}

func TestBulkAndCSVImport(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("owner@example.com")

	var wl struct {
		Slug string `json:"slug"`
	}
	c.mustDo(http.MethodPost, "/api/wishlists", map[string]any{"title": "Home"}, http.StatusCreated, &wl)

	var summary importer.Summary
	c.mustDo(http.MethodPost, "/api/wishlists/"+wl.Slug+"/import/bulk", map[string]string{
		"text": "https://shop.example.com/lamp\nnot-a-url\nhttps://shop.example.com/lamp",
	}, http.StatusOK, &summary)
	if summary.Created != 1 || summary.Skipped != 2 {
		t.Errorf("bulk summary = %+v", summary)
	}

	upload := func(csv string) (int, []byte) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "items.csv")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(csv))
		mw.Close()
		req, err := http.NewRequest(http.MethodPost, c.base+"/api/wishlists/"+wl.Slug+"/import/csv", &buf)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return c.send(req)
	}

	status, body := upload("url,title\nhttps://x.com/1,A\nbad,B\n")
	if status != http.StatusCreated {
		t.Fatalf("upload = %d %s", status, body)
	}
	var job struct {
		JobID string           `json:"job_id"`
		Rows  int              `json:"rows"`
		Guess importer.Mapping `json:"guess"`
	}
	if err := json.Unmarshal(body, &job); err != nil {
		t.Fatal(err)
	}
	if job.Rows != 2 || job.Guess.URL != "url" {
		t.Errorf("job = %+v", job)
	}

	c.mustDo(http.MethodPost, "/api/wishlists/"+wl.Slug+"/import/csv/"+job.JobID, importer.Mapping{Title: "title"}, http.StatusBadRequest, nil)

	c.mustDo(http.MethodPost, "/api/wishlists/"+wl.Slug+"/import/csv/"+job.JobID, job.Guess, http.StatusOK, &summary)
	if summary.Created != 1 || summary.Skipped != 1 {
		t.Errorf("csv summary = %+v", summary)
	}
	c.mustDo(http.MethodPost, "/api/wishlists/"+wl.Slug+"/import/csv/"+job.JobID, job.Guess, http.StatusNotFound, nil)

	status, _ = upload(strings.Repeat("https://x.com/", 400))
	if status != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload = %d, want 413", status)
	}
	status, _ = upload("   ")
	if status != http.StatusBadRequest {
		t.Errorf("empty upload = %d, want 400", status)
	}
}

func TestEnrichAndProfiles(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client(t)
	aliceID := alice.register("alice@example.com")

	var res enrich.Result
	alice.mustDo(http.MethodGet, "/api/enrich?url=https://shop.example.com/lamp", nil, http.StatusOK, &res)
	if res.Title != "Desk lamp" {
		t.Errorf("enrich = %+v", res)
	}
	alice.mustDo(http.MethodGet, "/api/enrich", nil, http.StatusBadRequest, nil)

	alice.mustDo(http.MethodPatch, "/api/profile", map[string]any{"display_name": "Alice", "birth_date": "1990-05-01"}, http.StatusOK, nil)

	bob := env.client(t)
	bob.register("bob@example.com")
	var profile struct {
		DisplayName string  `json:"display_name"`
		BirthDate   *string `json:"birth_date"`
	}
	bob.mustDo(http.MethodGet, "/api/users/"+itoa(aliceID)+"/profile", nil, http.StatusOK, &profile)
	if profile.DisplayName != "Alice" || profile.BirthDate != nil {
		t.Errorf("public profile = %+v", profile)
	}

	alice.mustDo(http.MethodPatch, "/api/profile", map[string]any{"is_public": false}, http.StatusOK, nil)
	bob.mustDo(http.MethodGet, "/api/users/"+itoa(aliceID)+"/profile", nil, http.StatusNotFound, nil)
	alice.mustDo(http.MethodGet, "/api/users/"+itoa(aliceID)+"/profile", nil, http.StatusOK, nil)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	env.client(t).mustDo(http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
