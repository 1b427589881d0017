package api

import (
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Kerhoff/wishlister/internal/service"
)

// ---------------------------------------------------------------------------
// Read-only wishlist views
// ---------------------------------------------------------------------------

func (s *Server) handlePublicWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := s.svc.PublicWishlist(r.Context(), currentUser(r), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, r, err, "show wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, wl)
}

func (s *Server) handleSharedWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := s.svc.SharedWishlist(r.Context(), currentUser(r), chi.URLParam(r, "token"))
	if err != nil {
		s.respondServiceError(w, r, err, "show wishlist")
		return
	}
	// token links must not end up in search results
	w.Header().Set("X-Robots-Tag", "noindex, nofollow")
	s.respondJSON(w, http.StatusOK, wl)
}

// ---------------------------------------------------------------------------
// Sitemap
// ---------------------------------------------------------------------------

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	lists, err := s.svc.Sitemap(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err, "build sitemap")
		return
	}

	base := baseURL(r)
	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, wl := range lists {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     base + "/p/" + wl.Slug,
			LastMod: wl.LastModified().UTC().Format("2006-01-02"),
		})
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		s.logger.WithError(err).Error("failed to encode sitemap")
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

// ---------------------------------------------------------------------------
// Enrichment preview
// ---------------------------------------------------------------------------

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.PreviewEnrich(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		s.respondServiceError(w, r, err, "fetch preview")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.GetUser(r.Context(), currentUser(r).ID)
	if err != nil {
		s.respondServiceError(w, r, err, "get profile")
		return
	}
	s.respondJSON(w, http.StatusOK, user.Profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfilePatch
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	profile, err := s.svc.UpdateProfile(r.Context(), currentUser(r), req)
	if err != nil {
		s.respondServiceError(w, r, err, "update profile")
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePublicProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	profile, err := s.svc.PublicProfile(r.Context(), currentUser(r), id)
	if err != nil {
		s.respondServiceError(w, r, err, "get profile")
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}
