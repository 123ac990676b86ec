package store

import (
	"testing"

	"github.com/dukerupert/huddle/internal/model"
)

func setupTeamTestDB(t *testing.T) (*TeamStore, *UserStore) {
	t.Helper()
	db := openTestDB(t)
	return NewTeamStore(db), NewUserStore(db)
}

func TestTeamCreateMakesCreatorLead(t *testing.T) {
	ts, us := setupTeamTestDB(t)
	alice, _ := us.Create("alice@example.com", "Alice", "", "")

	team, err := ts.Create("Platform", alice.ID)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if team.Name != "Platform" {
		t.Errorf("name = %q, want %q", team.Name, "Platform")
	}

	m, err := ts.GetMember(team.ID, alice.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil {
		t.Fatal("expected creator to be a member")
	}
	if m.Role != model.TeamRoleLead {
		t.Errorf("role = %q, want %q", m.Role, model.TeamRoleLead)
	}
	if m.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", m.Email, "alice@example.com")
	}
}

func TestTeamCreateUnknownCreatorRollsBack(t *testing.T) {
	ts, _ := setupTeamTestDB(t)

	if _, err := ts.Create("Ghosts", 999); err == nil {
		t.Fatal("expected foreign key error, got nil")
	}
	n, _ := ts.Count()
	if n != 0 {
		t.Errorf("teams = %d, want 0", n)
	}
}

func TestTeamMembers(t *testing.T) {
	ts, us := setupTeamTestDB(t)
	alice, _ := us.Create("alice@example.com", "Alice", "", "")
	bob, _ := us.Create("bob@example.com", "Bob", "", "")

	team, _ := ts.Create("Platform", alice.ID)
	if _, err := ts.AddMember(team.ID, bob.ID, model.TeamRoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := ts.AddMember(team.ID, bob.ID, model.TeamRoleMember); err == nil {
		t.Error("expected error adding a member twice")
	}

	members, err := ts.ListMembers(team.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len = %d, want 2", len(members))
	}

	ids, err := ts.MemberUserIDs(team.ID)
	if err != nil {
		t.Fatalf("member ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != alice.ID || ids[1] != bob.ID {
		t.Errorf("ids = %v, want [%d %d]", ids, alice.ID, bob.ID)
	}

	if err := ts.RemoveMember(team.ID, bob.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	m, _ := ts.GetMember(team.ID, bob.ID)
	if m != nil {
		t.Error("expected nil after remove")
	}
}

func TestListTeamsForUser(t *testing.T) {
	ts, us := setupTeamTestDB(t)
	alice, _ := us.Create("alice@example.com", "Alice", "", "")
	bob, _ := us.Create("bob@example.com", "Bob", "", "")

	ts.Create("Zeta", alice.ID)
	ts.Create("Alpha", alice.ID)
	ts.Create("Bob's", bob.ID)

	teams, err := ts.ListTeamsForUser(alice.ID)
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("len = %d, want 2", len(teams))
	}
	if teams[0].Name != "Alpha" {
		t.Errorf("first = %q, want %q", teams[0].Name, "Alpha")
	}
}
