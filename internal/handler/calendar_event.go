package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
)

const maxEventRange = 366 * 24 * time.Hour

type CalendarEventHandler struct {
	events *store.EventStore
	teams  *store.TeamStore
	logger *slog.Logger
}

func NewCalendarEventHandler(es *store.EventStore, ts *store.TeamStore, logger *slog.Logger) *CalendarEventHandler {
	return &CalendarEventHandler{events: es, teams: ts, logger: logger.With("component", "events")}
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	AllDay      bool   `json:"all_day"`
	TeamID      *int64 `json:"team_id"`
	Location    string `json:"location"`
}

func (h *CalendarEventHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (store.EventInput, bool) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return store.EventInput{}, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return store.EventInput{}, false
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
		return store.EventInput{}, false
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339 format")
		return store.EventInput{}, false
	}
	if !startTime.Before(endTime) {
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
		return store.EventInput{}, false
	}

	if req.TeamID != nil {
		m, err := h.teams.GetMember(*req.TeamID, auth.UserID(r.Context()))
		if err != nil {
			h.logger.Error("check team membership", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return store.EventInput{}, false
		}
		if m == nil {
			writeError(w, http.StatusBadRequest, "team not found")
			return store.EventInput{}, false
		}
	}

	return store.EventInput{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		StartTime:   startTime,
		EndTime:     endTime,
		AllDay:      req.AllDay,
		TeamID:      req.TeamID,
		Location:    strings.TrimSpace(req.Location),
	}, true
}

// visible loads the event in the path if the caller owns it or belongs to
// its team. Invisible events are reported as not found.
func (h *CalendarEventHandler) visible(w http.ResponseWriter, r *http.Request) *model.CalendarEvent {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	event, err := h.events.GetByID(id)
	if err != nil {
		h.logger.Error("get event", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil
	}

	userID := auth.UserID(r.Context())
	if event.OwnerID == userID {
		return event
	}
	if event.TeamID != nil {
		m, err := h.teams.GetMember(*event.TeamID, userID)
		if err != nil {
			h.logger.Error("check team membership", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return nil
		}
		if m != nil {
			return event
		}
	}
	writeError(w, http.StatusNotFound, "event not found")
	return nil
}

func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	event, err := h.events.Create(auth.UserID(r.Context()), in)
	if err != nil {
		h.logger.Error("create event", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}
	start, err := parseFlexibleTime(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}
	end, err := parseFlexibleTime(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}
	if end.Sub(start) > maxEventRange {
		writeError(w, http.StatusBadRequest, "range must not exceed one year")
		return
	}

	events, err := h.events.ListVisible(auth.UserID(r.Context()), start, end)
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if event := h.visible(w, r); event != nil {
		writeJSON(w, http.StatusOK, event)
	}
}

// Update handles PUT /api/events/{id}. Only the owner may edit.
func (h *CalendarEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.visible(w, r)
	if existing == nil {
		return
	}
	if existing.OwnerID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "only the owner can edit this event")
		return
	}

	in, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}
	event, err := h.events.Update(existing.ID, in)
	if err != nil {
		h.logger.Error("update event", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/events/{id}. Only the owner may delete.
func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.visible(w, r)
	if existing == nil {
		return
	}
	if existing.OwnerID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "only the owner can delete this event")
		return
	}

	if err := h.events.Delete(existing.ID); err != nil {
		h.logger.Error("delete event", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
