package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
)

type teamFixture struct {
	h      *TeamHandler
	teams  *store.TeamStore
	lead   *model.User
	member *model.User
	other  *model.User
	team   *model.Team
}

func setupTeam(t *testing.T) *teamFixture {
	t.Helper()
	db := setupDB(t)
	users := store.NewUserStore(db)
	teams := store.NewTeamStore(db)
	f := &teamFixture{
		h:      NewTeamHandler(teams, users, discardLogger()),
		teams:  teams,
		lead:   createUser(t, users, "lead@example.com", model.RoleMember),
		member: createUser(t, users, "member@example.com", model.RoleMember),
		other:  createUser(t, users, "other@example.com", model.RoleMember),
	}
	team, err := teams.Create("Platform", f.lead.ID)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	f.team = team
	if _, err := teams.AddMember(team.ID, f.member.ID, model.TeamRoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}
	return f
}

func TestTeamCreate(t *testing.T) {
	f := setupTeam(t)

	rec := serve(f.h.Create, as(jsonReq("POST", "/api/teams", `{"name":"  Design "}`), f.other))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	team := decode[model.Team](t, rec)
	if team.Name != "Design" {
		t.Errorf("name = %q", team.Name)
	}
	m, _ := f.teams.GetMember(team.ID, f.other.ID)
	if m == nil || m.Role != model.TeamRoleLead {
		t.Errorf("creator membership = %+v, want lead", m)
	}

	if rec := serve(f.h.Create, as(jsonReq("POST", "/api/teams", `{"name":" "}`), f.other)); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", rec.Code)
	}
}

func TestTeamListOnlyOwnTeams(t *testing.T) {
	f := setupTeam(t)

	rec := serve(f.h.List, as(httptest.NewRequest("GET", "/api/teams", nil), f.member))
	if got := decode[[]model.Team](t, rec); len(got) != 1 || got[0].ID != f.team.ID {
		t.Errorf("member teams = %+v", got)
	}

	rec = serve(f.h.List, as(httptest.NewRequest("GET", "/api/teams", nil), f.other))
	if got := decode[[]model.Team](t, rec); len(got) != 0 {
		t.Errorf("outsider teams = %+v, want none", got)
	}
}

func TestTeamMembersHiddenFromOutsiders(t *testing.T) {
	f := setupTeam(t)

	req := withID(httptest.NewRequest("GET", "/", nil), "id", f.team.ID)
	rec := serve(f.h.Members, as(req, f.member))
	if rec.Code != http.StatusOK {
		t.Fatalf("member status = %d", rec.Code)
	}
	if got := decode[[]model.TeamMember](t, rec); len(got) != 2 {
		t.Errorf("members = %d, want 2", len(got))
	}

	req = withID(httptest.NewRequest("GET", "/", nil), "id", f.team.ID)
	if rec := serve(f.h.Members, as(req, f.other)); rec.Code != http.StatusNotFound {
		t.Errorf("outsider status = %d, want 404", rec.Code)
	}
}

func TestTeamAddMember(t *testing.T) {
	f := setupTeam(t)
	body := fmt.Sprintf(`{"user_id":%d}`, f.other.ID)

	req := withID(jsonReq("POST", "/", body), "id", f.team.ID)
	if rec := serve(f.h.AddMember, as(req, f.member)); rec.Code != http.StatusForbidden {
		t.Errorf("non-lead status = %d, want 403", rec.Code)
	}

	req = withID(jsonReq("POST", "/", body), "id", f.team.ID)
	rec := serve(f.h.AddMember, as(req, f.lead))
	if rec.Code != http.StatusCreated {
		t.Fatalf("lead status = %d, body %s", rec.Code, rec.Body.String())
	}
	if m := decode[model.TeamMember](t, rec); m.Role != model.TeamRoleMember {
		t.Errorf("default role = %q, want member", m.Role)
	}

	req = withID(jsonReq("POST", "/", body), "id", f.team.ID)
	if rec := serve(f.h.AddMember, as(req, f.lead)); rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	req = withID(jsonReq("POST", "/", `{"user_id":9999}`), "id", f.team.ID)
	if rec := serve(f.h.AddMember, as(req, f.lead)); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown user status = %d, want 400", rec.Code)
	}

	req = withID(jsonReq("POST", "/", fmt.Sprintf(`{"user_id":%d,"role":"owner"}`, f.other.ID)), "id", f.team.ID)
	if rec := serve(f.h.AddMember, as(req, f.lead)); rec.Code != http.StatusBadRequest {
		t.Errorf("bad role status = %d, want 400", rec.Code)
	}
}

func TestTeamRemoveMember(t *testing.T) {
	f := setupTeam(t)

	remove := func(actor *model.User, userID int64) int {
		req := withID(httptest.NewRequest("DELETE", "/", nil), "id", f.team.ID)
		req = withID(req, "user_id", userID)
		return serve(f.h.RemoveMember, as(req, actor)).Code
	}

	if code := remove(f.member, f.lead.ID); code != http.StatusForbidden {
		t.Errorf("member removing lead = %d, want 403", code)
	}
	if code := remove(f.member, f.member.ID); code != http.StatusNoContent {
		t.Errorf("member leaving = %d, want 204", code)
	}
	if m, _ := f.teams.GetMember(f.team.ID, f.member.ID); m != nil {
		t.Error("member still present after leaving")
	}
	if code := remove(f.other, f.lead.ID); code != http.StatusNotFound {
		t.Errorf("outsider = %d, want 404", code)
	}
}
