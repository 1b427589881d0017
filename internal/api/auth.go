package api

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName   = "wishlister_session"
	sessionMaxAge = 86400 * 30

	sessionUserKey = "user_id"
	// sessionJobKey holds the id of the pending CSV import job
	sessionJobKey = "import_job_id"
)

func (s *Server) session(r *http.Request) *sessions.Session {
	// a cookie that fails to decode still yields a fresh session
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		s.logger.WithError(err).Debug("Discarding invalid session cookie")
	}
	return sess
}

func (s *Server) sessionUserID(r *http.Request) (int64, bool) {
	id, ok := s.session(r).Values[sessionUserKey].(int64)
	return id, ok && id != 0
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *sessions.Session) bool {
	if err := sess.Save(r, w); err != nil {
		s.logger.WithError(err).Error("failed to save session")
		s.respondError(w, http.StatusInternalServerError, "failed to save session")
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := s.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err, "register")
		return
	}

	sess := s.session(r)
	sess.Values[sessionUserKey] = user.ID
	if !s.saveSession(w, r, sess) {
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := s.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err, "log in")
		return
	}

	sess := s.session(r)
	sess.Values = map[any]any{sessionUserKey: user.ID}
	if !s.saveSession(w, r, sess) {
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	if !s.saveSession(w, r, sess) {
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, currentUser(r))
}
