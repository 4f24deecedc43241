package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/ssd-technologies/cubby/internal/crypto"
	"github.com/ssd-technologies/cubby/internal/storage"
)

const sessionCookie = "cubby_session"

// Usernames double as namespace directory names, so the charset is what a
// filesystem path segment can safely carry.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// credentials is the JSON body for register and login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister handles POST /api/auth/register — create an identity, its
// namespace, and an authenticated session in one step.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.authLimit.allow(getIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if !usernamePattern.MatchString(req.Username) {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}

	id := &storage.Identity{
		Username:  req.Username,
		Verifier:  crypto.HashSecret(req.Password),
		CreatedAt: time.Now().Unix(),
	}
	if err := s.db.CreateIdentity(id); err != nil {
		if errors.Is(err, storage.ErrExists) {
			writeError(w, http.StatusConflict, "username is taken")
			return
		}
		log.Printf("register %q: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	if _, err := s.vault.EnsureNamespace(req.Username); err != nil {
		log.Printf("register %q: ensure namespace: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to create namespace")
		return
	}

	if err := s.startSession(w, req.Username); err != nil {
		log.Printf("register %q: start session: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

// handleLogin handles POST /api/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.authLimit.allow(getIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	id, err := s.db.GetIdentity(req.Username)
	if err != nil {
		// Unknown user and wrong password answer identically so logins
		// cannot be used to probe for usernames.
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("login %q: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if !crypto.MatchesSecret(req.Password, id.Verifier) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := s.startSession(w, req.Username); err != nil {
		log.Printf("login %q: start session: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username})
}

// handleLogout handles POST /api/auth/logout — delete the session and clear
// the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	if err := s.db.DeleteSession(c.Value); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("logout: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// startSession persists a fresh session for username and sets its cookie.
func (s *Server) startSession(w http.ResponseWriter, username string) error {
	now := time.Now()
	sess := &storage.Session{
		Token:     uuid.New().String(),
		Username:  username,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.sessionTTL).Unix(),
	}
	if err := s.db.CreateSession(sess); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  now.Add(s.sessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// currentUser resolves the request's session cookie to a username.
func (s *Server) currentUser(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	sess, err := s.db.GetSession(c.Value)
	if err != nil {
		return "", false
	}
	if sess.ExpiresAt <= time.Now().Unix() {
		return "", false
	}
	return sess.Username, true
}

// requireUser resolves the caller's identity or writes a 401. Handlers for
// authenticated routes call this first.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return user, true
}
