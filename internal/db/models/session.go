package models

import "time"

// Session is one browser login. Token is the opaque value carried in the
// portr_session cookie; rows past ExpiresAt are rejected at resolve time and
// garbage-collected by the reclaimer.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionTTL is the lifetime of a newly created session.
const SessionTTL = 7 * 24 * time.Hour
