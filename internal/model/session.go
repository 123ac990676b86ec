package model

import "time"

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationToken is a hashed one-time secret bound to an identifier.
// The identifier is an email address for verification codes, or the email
// prefixed with "reset:" for password reset tokens.
type VerificationToken struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	TokenHash  string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the token is no longer usable at now.
func (v VerificationToken) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
