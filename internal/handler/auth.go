package handler

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/middleware"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/password"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/token"
)

const minPasswordLength = 8

type AuthHandler struct {
	users    *store.UserStore
	sessions *store.SessionStore
	hasher   *password.Hasher
	tokens   *token.Manager
	cookies  CookieConfig
	logger   *slog.Logger
	dummyPwd string
}

func NewAuthHandler(users *store.UserStore, sessions *store.SessionStore, hasher *password.Hasher, tokens *token.Manager, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	dummy, _ := hasher.Hash("huddle-login-dummy")
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		cookies:  cookies,
		logger:   logger.With("component", "auth"),
		dummyPwd: dummy,
	}
}

// validatePassword returns a client-facing message, or "" if pw is acceptable.
func validatePassword(pw string) string {
	switch {
	case len(pw) < minPasswordLength:
		return "password must be at least 8 characters"
	case len(pw) > password.MaxLength:
		return "password must be at most 72 bytes"
	}
	return ""
}

func validEmail(addr string) bool {
	a, err := mail.ParseAddress(addr)
	return err == nil && a.Address == addr && strings.Contains(addr, "@")
}

func (h *AuthHandler) startSession(w http.ResponseWriter, u *model.User) bool {
	sess, err := h.sessions.Create(u.ID)
	if err != nil {
		h.logger.Error("create session", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	h.cookies.set(w, middleware.SessionCookieName, sess.Token, time.Until(sess.ExpiresAt))
	return true
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = store.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if msg := validatePassword(req.Password); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "an account with that email already exists")
		return
	}

	digest, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	u, err := h.users.Create(req.Email, req.Name, digest, model.RoleMember)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !h.startSession(w, u) {
		return
	}
	h.logger.Info("user registered", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = store.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	digest := h.dummyPwd
	if u != nil {
		digest = u.PasswordHash
	}
	if !h.hasher.Compare(req.Password, digest) || u == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if !h.startSession(w, u) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := h.sessions.GetByToken(cookie.Value); err == nil && sess != nil {
			if err := h.sessions.Delete(sess.ID); err != nil {
				h.logger.Error("delete session", "error", err)
			}
		}
	}
	h.cookies.clear(w, middleware.SessionCookieName)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session handles GET /api/auth/session. It is mounted without RequireAuth
// so a logged-out client gets {user:null} instead of an error body.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"user": nil})
		return
	}
	sess, err := h.sessions.GetByToken(cookie.Value)
	if err != nil {
		h.logger.Error("lookup session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"user": nil})
		return
	}
	u, err := h.users.GetByID(sess.UserID)
	if err != nil {
		h.logger.Error("lookup session user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "expiresAt": sess.ExpiresAt})
}

// APIToken handles GET /api/auth/token. It mints a short-lived bearer token
// for cross-domain API calls. Bearer-authenticated requests cannot use it,
// so a token cannot be used to extend itself.
func (h *AuthHandler) APIToken(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok || ac.SessionID == 0 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.users.GetByID(ac.UserID)
	if err != nil {
		h.logger.Error("lookup token user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	raw, claims, err := h.tokens.IssueAPI(token.APIIdentity{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
	if err != nil {
		h.logger.Error("issue api token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     raw,
		"expiresAt": claims.ExpiresAt.Time,
		"user": map[string]any{
			"id":    u.ID,
			"email": u.Email,
			"name":  u.Name,
			"role":  u.Role,
		},
	})
}
