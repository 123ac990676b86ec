package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// EventInput carries the editable fields of a calendar event.
type EventInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	TeamID      *int64
	Location    string
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var allDayInt int
	var teamID sql.NullInt64

	err := scanner.Scan(&e.ID, &e.OwnerID, &teamID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &allDayInt, &e.Location, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.AllDay = allDayInt != 0
	if teamID.Valid {
		e.TeamID = &teamID.Int64
	}
	return &e, nil
}

const eventCols = `id, owner_id, team_id, title, description, start_time, end_time, all_day, location, created_at, updated_at`

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func (s *EventStore) Create(ownerID int64, in EventInput) (*model.CalendarEvent, error) {
	result, err := s.db.Exec(
		`INSERT INTO calendar_events (owner_id, team_id, title, description, start_time, end_time, all_day, location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID, nullInt64(in.TeamID), in.Title, in.Description, in.StartTime.UTC(), in.EndTime.UTC(), boolInt(in.AllDay), in.Location,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.CalendarEvent, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM calendar_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}
	return e, nil
}

// ListVisible returns events overlapping [start, end) that userID owns or
// that belong to one of the user's teams.
func (s *EventStore) ListVisible(userID int64, start, end time.Time) ([]model.CalendarEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+`
		 FROM calendar_events
		 WHERE start_time < ? AND end_time > ?
		   AND (owner_id = ? OR team_id IN (SELECT team_id FROM team_members WHERE user_id = ?))
		 ORDER BY all_day DESC, start_time ASC`,
		end.UTC(), start.UTC(), userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(id int64, in EventInput) (*model.CalendarEvent, error) {
	_, err := s.db.Exec(
		`UPDATE calendar_events
		 SET title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?, team_id = ?, location = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Title, in.Description, in.StartTime.UTC(), in.EndTime.UTC(), boolInt(in.AllDay), nullInt64(in.TeamID), in.Location, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update calendar event: %w", err)
	}

	return s.GetByID(id)
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec("DELETE FROM calendar_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

func (s *EventStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM calendar_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count calendar events: %w", err)
	}
	return n, nil
}
