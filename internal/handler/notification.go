package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/notify"
	"github.com/dukerupert/huddle/internal/store"
)

const maxNotificationRecipients = 500

// Notifier sends a notification to its recipients on every instance.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) (bool, error)
}

type NotificationHandler struct {
	notifier Notifier
	teams    *store.TeamStore
	users    *store.UserStore
	now      func() time.Time
	logger   *slog.Logger
}

func NewNotificationHandler(notifier Notifier, teams *store.TeamStore, users *store.UserStore, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifier: notifier,
		teams:    teams,
		users:    users,
		now:      time.Now,
		logger:   logger.With("component", "notifications"),
	}
}

type notificationRequest struct {
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	URL     string  `json:"url"`
	UserIDs []int64 `json:"user_ids"`
	TeamID  *int64  `json:"team_id"`
}

// Create handles POST /api/notifications. A team target requires membership
// and reaches every other member; explicit user ids require the manager or
// admin role. The sender is never a recipient.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req notificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(req.Title) > 200 {
		writeError(w, http.StatusBadRequest, "title must be at most 200 characters")
		return
	}
	if req.URL != "" && !strings.HasPrefix(req.URL, "/") {
		writeError(w, http.StatusBadRequest, "url must be a relative path")
		return
	}
	if req.TeamID == nil && len(req.UserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "user_ids or team_id is required")
		return
	}

	var recipients []int64
	if req.TeamID != nil {
		m, err := h.teams.GetMember(*req.TeamID, ac.UserID)
		if err != nil {
			h.logger.Error("check team membership", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if m == nil {
			writeError(w, http.StatusNotFound, "team not found")
			return
		}
		ids, err := h.teams.MemberUserIDs(*req.TeamID)
		if err != nil {
			h.logger.Error("list team members", "team_id", *req.TeamID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		recipients = append(recipients, ids...)
	}

	if len(req.UserIDs) > 0 {
		if ac.Role != model.RoleManager && ac.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "only managers can notify individual users")
			return
		}
		for _, id := range req.UserIDs {
			u, err := h.users.GetByID(id)
			if err != nil {
				h.logger.Error("get user", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if u == nil {
				writeError(w, http.StatusBadRequest, "user not found")
				return
			}
		}
		recipients = append(recipients, req.UserIDs...)
	}

	slices.Sort(recipients)
	recipients = slices.Compact(recipients)
	recipients = slices.DeleteFunc(recipients, func(id int64) bool { return id == ac.UserID })
	if len(recipients) > maxNotificationRecipients {
		writeError(w, http.StatusBadRequest, "too many recipients")
		return
	}

	n := notify.Notification{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Body:     strings.TrimSpace(req.Body),
		URL:      req.URL,
		SenderID: ac.UserID,
		UserIDs:  recipients,
		SentAt:   h.now().UTC(),
	}
	if len(recipients) > 0 {
		if _, err := h.notifier.Notify(r.Context(), n); err != nil {
			h.logger.Error("notify", "notification_id", n.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":         n.ID,
		"recipients": len(recipients),
	})
}
