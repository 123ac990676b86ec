package model

import "time"

type Upload struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ObjectKey   string    `json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
