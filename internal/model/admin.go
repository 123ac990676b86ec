package model

import "time"

// AdminUser is an admin portal principal. Rows are provisioned out of band
// with huddle-admin; the web server only reads them.
type AdminUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
