package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/huddle/internal/middleware"
	"github.com/dukerupert/huddle/internal/password"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/token"
)

type adminUserJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// AdminAuthHandler logs admin principals in and out of the portal.
type AdminAuthHandler struct {
	admins   *store.AdminStore
	hasher   *password.Hasher
	tokens   *token.Manager
	cookies  CookieConfig
	portal   *AdminPortalHandler
	logger   *slog.Logger
	dummyPwd string
}

func NewAdminAuthHandler(admins *store.AdminStore, hasher *password.Hasher, tokens *token.Manager, cookies CookieConfig, portal *AdminPortalHandler, logger *slog.Logger) *AdminAuthHandler {
	// compared against when the username is unknown so both paths cost a bcrypt round
	dummy, _ := hasher.Hash("huddle-admin-dummy")
	return &AdminAuthHandler{
		admins:   admins,
		hasher:   hasher,
		tokens:   tokens,
		cookies:  cookies,
		portal:   portal,
		logger:   logger.With("component", "admin_auth"),
		dummyPwd: dummy,
	}
}

// Login handles POST /api/admin/login and POST /administrator/login. JSON
// bodies get JSON back; HTML form posts are redirected into the portal.
func (h *AdminAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form := isFormRequest(r)

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if form {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if req.Username == "" || req.Password == "" {
		if form {
			h.portal.renderLogin(w, http.StatusBadRequest, "Username and password are required.")
			return
		}
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	admin, err := h.admins.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("lookup admin", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	digest := h.dummyPwd
	if admin != nil {
		digest = admin.PasswordHash
	}
	match := h.hasher.Compare(req.Password, digest)
	if admin == nil || !match || !admin.IsActive {
		h.logger.Warn("admin login rejected", "username", req.Username, "remote", middleware.RealIP(r))
		if form {
			h.portal.renderLogin(w, http.StatusUnauthorized, "Invalid username or password.")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	raw, _, err := h.tokens.IssueAdmin(token.AdminIdentity{UserID: admin.ID, Username: admin.Username})
	if err != nil {
		h.logger.Error("issue admin token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.cookies.set(w, middleware.AdminCookieName, raw, token.AdminTTL)
	h.logger.Info("admin logged in", "admin_id", admin.ID, "username", admin.Username)

	if form {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    adminUserJSON{ID: admin.ID, Username: admin.Username, IsAdmin: true},
	})
}

// Logout handles POST /api/admin/logout and POST /admin/logout.
func (h *AdminAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.clear(w, middleware.AdminCookieName)
	if isFormRequest(r) || r.URL.Path == "/admin/logout" {
		http.Redirect(w, r, middleware.AdminLoginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session handles GET /api/admin/session.
func (h *AdminAuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	raw := middleware.AdminToken(r)
	if raw == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"user": nil})
		return
	}
	claims, err := h.tokens.VerifyAdmin(raw)
	if err != nil {
		h.logger.Debug("admin session rejected", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      adminUserJSON{ID: claims.UserID, Username: claims.Username, IsAdmin: claims.IsAdmin},
		"expiresAt": claims.ExpiresAt.Time,
	})
}
