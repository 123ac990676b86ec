package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var adminTemplates = template.Must(template.ParseFS(templateFS, "templates/admin_*.html"))

// Stats is the portal's summary of stored data.
type Stats struct {
	Users          int            `json:"users"`
	UsersByRole    map[string]int `json:"users_by_role"`
	Teams          int            `json:"teams"`
	Events         int            `json:"events"`
	Uploads        int            `json:"uploads"`
	ActiveSessions int            `json:"active_sessions"`
}

// AdminPortalHandler serves the guarded admin pages and admin API. Every
// route it serves sits behind the admin guard.
type AdminPortalHandler struct {
	users    *store.UserStore
	teams    *store.TeamStore
	events   *store.EventStore
	uploads  *store.UploadStore
	sessions *store.SessionStore
	logger   *slog.Logger
}

func NewAdminPortalHandler(users *store.UserStore, teams *store.TeamStore, events *store.EventStore, uploads *store.UploadStore, sessions *store.SessionStore, logger *slog.Logger) *AdminPortalHandler {
	return &AdminPortalHandler{
		users:    users,
		teams:    teams,
		events:   events,
		uploads:  uploads,
		sessions: sessions,
		logger:   logger.With("component", "admin_portal"),
	}
}

func (h *AdminPortalHandler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := adminTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *AdminPortalHandler) renderLogin(w http.ResponseWriter, status int, msg string) {
	h.render(w, status, "admin_login.html", map[string]any{"Error": msg})
}

// LoginPage handles GET /administrator/login.
func (h *AdminPortalHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, http.StatusOK, "")
}

func (h *AdminPortalHandler) stats() (Stats, error) {
	var s Stats
	var err error
	if s.Users, err = h.users.Count(); err != nil {
		return s, err
	}
	if s.UsersByRole, err = h.users.CountByRole(); err != nil {
		return s, err
	}
	if s.Teams, err = h.teams.Count(); err != nil {
		return s, err
	}
	if s.Events, err = h.events.Count(); err != nil {
		return s, err
	}
	if s.Uploads, err = h.uploads.Count(); err != nil {
		return s, err
	}
	if s.ActiveSessions, err = h.sessions.CountActive(); err != nil {
		return s, err
	}
	return s, nil
}

// Dashboard handles GET /admin/ and GET /admin/dashboard.
func (h *AdminPortalHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.AdminFromContext(r.Context())

	stats, err := h.stats()
	if err != nil {
		h.logger.Error("load stats", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	users, err := h.users.Search(q, 50)
	if err != nil {
		h.logger.Error("search users", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, "admin_dashboard.html", map[string]any{
		"Admin": admin.Username,
		"Stats": stats,
		"Query": q,
		"Users": users,
	})
}

// Stats handles GET /api/admin/stats.
func (h *AdminPortalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats()
	if err != nil {
		h.logger.Error("load stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListUsers handles GET /api/admin/users?q=&limit=.
func (h *AdminPortalHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	users, err := h.users.Search(r.URL.Query().Get("q"), limit)
	if err != nil {
		h.logger.Error("search users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// UpdateUserRole handles PUT /api/admin/users/{id}/role.
func (h *AdminPortalHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !model.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "role must be member, manager or admin")
		return
	}

	existing, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	u, err := h.users.UpdateRole(id, req.Role)
	if err != nil {
		h.logger.Error("update role", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	admin, _ := auth.AdminFromContext(r.Context())
	h.logger.Info("user role changed", "user_id", id, "from", existing.Role, "to", u.Role, "admin", admin.Username)
	writeJSON(w, http.StatusOK, u)
}

// DeleteUser handles DELETE /api/admin/users/{id}.
func (h *AdminPortalHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.users.Delete(id); err != nil {
		h.logger.Error("delete user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	admin, _ := auth.AdminFromContext(r.Context())
	h.logger.Info("user deleted", "user_id", id, "admin", admin.Username)
	w.WriteHeader(http.StatusNoContent)
}
