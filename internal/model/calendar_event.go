package model

import "time"

type CalendarEvent struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	TeamID      *int64    `json:"team_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
