package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
)

type TeamHandler struct {
	teams  *store.TeamStore
	users  *store.UserStore
	logger *slog.Logger
}

func NewTeamHandler(teams *store.TeamStore, users *store.UserStore, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, users: users, logger: logger.With("component", "teams")}
}

// membership loads the caller's membership of the team in the path. It
// writes the response and returns nil if the team is missing or the caller
// is not a member; non-members see 404 so team ids are not probeable.
func (h *TeamHandler) membership(w http.ResponseWriter, r *http.Request) (int64, *model.TeamMember) {
	teamID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, nil
	}
	m, err := h.teams.GetMember(teamID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get membership", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return 0, nil
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "team not found")
		return 0, nil
	}
	return teamID, m
}

// Create handles POST /api/teams.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	team, err := h.teams.Create(req.Name, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("create team", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// List handles GET /api/teams.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.ListTeamsForUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list teams", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if teams == nil {
		teams = []model.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

// Members handles GET /api/teams/{id}/members.
func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	teamID, m := h.membership(w, r)
	if m == nil {
		return
	}
	members, err := h.teams.ListMembers(teamID)
	if err != nil {
		h.logger.Error("list members", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if members == nil {
		members = []model.TeamMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember handles POST /api/teams/{id}/members. Leads only.
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	teamID, m := h.membership(w, r)
	if m == nil {
		return
	}
	if m.Role != model.TeamRoleLead {
		writeError(w, http.StatusForbidden, "only team leads can add members")
		return
	}

	var req struct {
		UserID int64  `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Role == "" {
		req.Role = model.TeamRoleMember
	}
	if req.Role != model.TeamRoleLead && req.Role != model.TeamRoleMember {
		writeError(w, http.StatusBadRequest, "role must be lead or member")
		return
	}

	u, err := h.users.GetByID(req.UserID)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil {
		writeError(w, http.StatusBadRequest, "user not found")
		return
	}
	existing, err := h.teams.GetMember(teamID, u.ID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "user is already a member")
		return
	}

	member, err := h.teams.AddMember(teamID, u.ID, req.Role)
	if err != nil {
		h.logger.Error("add member", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// RemoveMember handles DELETE /api/teams/{id}/members/{user_id}. Leads may
// remove anyone; members may remove themselves.
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID, m := h.membership(w, r)
	if m == nil {
		return
	}
	userID, err := parsePathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if m.Role != model.TeamRoleLead && userID != m.UserID {
		writeError(w, http.StatusForbidden, "only team leads can remove other members")
		return
	}

	if err := h.teams.RemoveMember(teamID, userID); err != nil {
		h.logger.Error("remove member", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
