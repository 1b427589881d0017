package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/service"
)

// ---------------------------------------------------------------------------
// Wishlists
// ---------------------------------------------------------------------------

func (s *Server) handleListWishlists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 1
	if raw := q.Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			page = v
		}
	}

	result, err := s.svc.ListWishlists(r.Context(), currentUser(r), q.Get("q"), q.Get("sort"), page)
	if err != nil {
		s.respondServiceError(w, r, err, "list wishlists")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request) {
	lists, err := s.svc.ListShared(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err, "list shared wishlists")
		return
	}
	if lists == nil {
		lists = []*models.Wishlist{}
	}
	s.respondJSON(w, http.StatusOK, lists)
}

func (s *Server) handleCreateWishlist(w http.ResponseWriter, r *http.Request) {
	var req service.WishlistPatch
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	wl, err := s.svc.CreateWishlist(r.Context(), currentUser(r), req)
	if err != nil {
		s.respondServiceError(w, r, err, "create wishlist")
		return
	}
	s.respondJSON(w, http.StatusCreated, wl)
}

func (s *Server) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetWishlist(r.Context(), currentUser(r), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, r, err, "get wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateWishlist(w http.ResponseWriter, r *http.Request) {
	var req service.WishlistPatch
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	wl, err := s.svc.UpdateWishlist(r.Context(), currentUser(r), chi.URLParam(r, "slug"), req)
	if err != nil {
		s.respondServiceError(w, r, err, "update wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, wl)
}

func (s *Server) handleDeleteWishlist(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteWishlist(r.Context(), currentUser(r), chi.URLParam(r, "slug")); err != nil {
		s.respondServiceError(w, r, err, "delete wishlist")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Sharing
// ---------------------------------------------------------------------------

type shareResponse struct {
	Token string `json:"token"`
	Path  string `json:"path"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	rotate, _ := strconv.ParseBool(r.URL.Query().Get("rotate"))

	token, err := s.svc.EnsureShareToken(r.Context(), currentUser(r), chi.URLParam(r, "slug"), rotate)
	if err != nil {
		s.respondServiceError(w, r, err, "share wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, shareResponse{Token: token, Path: "/s/" + token})
}

func (s *Server) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RevokeShareToken(r.Context(), currentUser(r), chi.URLParam(r, "slug")); err != nil {
		s.respondServiceError(w, r, err, "revoke share token")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Access grants
// ---------------------------------------------------------------------------

type grantRequest struct {
	Email string            `json:"email"`
	Role  models.AccessRole `json:"role"`
}

func (s *Server) handleListAccess(w http.ResponseWriter, r *http.Request) {
	grants, err := s.svc.ListAccess(r.Context(), currentUser(r), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, r, err, "list access")
		return
	}
	if grants == nil {
		grants = []*models.WishlistAccess{}
	}
	s.respondJSON(w, http.StatusOK, grants)
}

func (s *Server) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	grant, err := s.svc.GrantAccess(r.Context(), currentUser(r), chi.URLParam(r, "slug"), req.Email, req.Role)
	if err != nil {
		s.respondServiceError(w, r, err, "grant access")
		return
	}
	s.respondJSON(w, http.StatusOK, grant)
}

func (s *Server) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := s.svc.RevokeAccess(r.Context(), currentUser(r), chi.URLParam(r, "slug"), userID); err != nil {
		s.respondServiceError(w, r, err, "revoke access")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}
