package store

import (
	"testing"
	"time"
)

func setupEventTestDB(t *testing.T) (*EventStore, *UserStore, *TeamStore) {
	t.Helper()
	db := openTestDB(t)
	return NewEventStore(db), NewUserStore(db), NewTeamStore(db)
}

func TestCreateAndGetByID(t *testing.T) {
	s, us, _ := setupEventTestDB(t)
	owner, _ := us.Create("alice@example.com", "Alice", "", "")

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 5, 11, 0, 0, 0, time.UTC)

	event, err := s.Create(owner.ID, EventInput{
		Title: "Team Meeting", Description: "Weekly sync",
		StartTime: start, EndTime: end, Location: "Conference Room",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.Title != "Team Meeting" {
		t.Errorf("title = %q, want %q", event.Title, "Team Meeting")
	}
	if event.OwnerID != owner.ID {
		t.Errorf("owner_id = %d, want %d", event.OwnerID, owner.ID)
	}
	if event.AllDay {
		t.Error("all_day should be false")
	}
	if event.TeamID != nil {
		t.Errorf("team_id should be nil, got %v", *event.TeamID)
	}

	got, err := s.GetByID(event.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("start_time = %v, want %v", got.StartTime, start)
	}
	if !got.EndTime.Equal(end) {
		t.Errorf("end_time = %v, want %v", got.EndTime, end)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s, _, _ := setupEventTestDB(t)

	event, err := s.GetByID(9999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if event != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestListVisible(t *testing.T) {
	s, us, ts := setupEventTestDB(t)
	alice, _ := us.Create("alice@example.com", "Alice", "", "")
	bob, _ := us.Create("bob@example.com", "Bob", "", "")
	carol, _ := us.Create("carol@example.com", "Carol", "", "")

	team, _ := ts.Create("Platform", alice.ID)
	ts.AddMember(team.ID, bob.ID, "member")

	day := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	s.Create(alice.ID, EventInput{Title: "Alice private", StartTime: at(9), EndTime: at(10)})
	s.Create(alice.ID, EventInput{Title: "Team standup", StartTime: at(10), EndTime: at(11), TeamID: &team.ID})
	s.Create(carol.ID, EventInput{Title: "Carol private", StartTime: at(11), EndTime: at(12)})
	s.Create(bob.ID, EventInput{Title: "Holiday", StartTime: day, EndTime: day.Add(24 * time.Hour), AllDay: true})
	s.Create(bob.ID, EventInput{Title: "Next day", StartTime: at(30), EndTime: at(31)})

	events, err := s.ListVisible(bob.ID, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Title != "Holiday" {
		t.Errorf("first = %q, want all-day Holiday first", events[0].Title)
	}
	if events[1].Title != "Team standup" {
		t.Errorf("second = %q, want %q", events[1].Title, "Team standup")
	}

	carolEvents, _ := s.ListVisible(carol.ID, day, day.Add(24*time.Hour))
	if len(carolEvents) != 1 || carolEvents[0].Title != "Carol private" {
		t.Errorf("carol events = %+v, want only Carol private", carolEvents)
	}
}

func TestUpdate(t *testing.T) {
	s, us, _ := setupEventTestDB(t)
	owner, _ := us.Create("alice@example.com", "Alice", "", "")

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	event, _ := s.Create(owner.ID, EventInput{Title: "Original", StartTime: start, EndTime: start.Add(time.Hour)})

	newStart := start.Add(2 * time.Hour)
	updated, err := s.Update(event.ID, EventInput{
		Title: "Updated", Description: "New desc", StartTime: newStart, EndTime: newStart.Add(time.Hour),
		AllDay: true, Location: "Room 2",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Updated" {
		t.Errorf("title = %q, want %q", updated.Title, "Updated")
	}
	if !updated.AllDay {
		t.Error("all_day should be true")
	}
	if !updated.StartTime.Equal(newStart) {
		t.Errorf("start_time = %v, want %v", updated.StartTime, newStart)
	}
}

func TestDelete(t *testing.T) {
	s, us, _ := setupEventTestDB(t)
	owner, _ := us.Create("alice@example.com", "Alice", "", "")

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	event, _ := s.Create(owner.ID, EventInput{Title: "Doomed", StartTime: start, EndTime: start.Add(time.Hour)})

	if err := s.Delete(event.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.GetByID(event.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestTeamDeleteSetsNull(t *testing.T) {
	s, us, ts := setupEventTestDB(t)
	owner, _ := us.Create("alice@example.com", "Alice", "", "")
	team, _ := ts.Create("Platform", owner.ID)

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	event, _ := s.Create(owner.ID, EventInput{Title: "Sync", StartTime: start, EndTime: start.Add(time.Hour), TeamID: &team.ID})

	if err := ts.Delete(team.ID); err != nil {
		t.Fatalf("delete team: %v", err)
	}
	got, _ := s.GetByID(event.ID)
	if got == nil {
		t.Fatal("event should survive team deletion")
	}
	if got.TeamID != nil {
		t.Errorf("team_id = %v, want nil", *got.TeamID)
	}
}
