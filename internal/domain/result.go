package domain

import "time"

// SessionStatus is the terminal (or pending) state of a session. Once a
// DSN is issued the session stays observable as ready until revoked or
// expired; ready never transitions to failed.
type SessionStatus string

const (
	SessionPending  SessionStatus = "pending"
	SessionReady    SessionStatus = "ready"
	SessionRevoked  SessionStatus = "revoked"
	SessionExpired  SessionStatus = "expired"
	SessionFailed   SessionStatus = "failed"
	SessionNotFound SessionStatus = "not_found"
)

// ResultError is the error shape embedded in a failed job result. It never
// carries a stack trace; code and message are stable and safe to surface
// to a caller.
type ResultError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// CreateSessionResult is the outcome of a create_session job.
type CreateSessionResult struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	DSN       string        `json:"dsn,omitempty"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
	Username  string        `json:"username,omitempty"`
	Error     *ResultError  `json:"error,omitempty"`
}

// RevokeSessionResult is the outcome of a revoke_session job.
type RevokeSessionResult struct {
	Status SessionStatus `json:"status"`
	Error  *ResultError  `json:"error,omitempty"`
}

// CleanupResult is the outcome of a cleanup job.
type CleanupResult struct {
	Status       string       `json:"status"` // "completed" | "failed"
	CleanedCount int          `json:"cleanedCount"`
	Error        *ResultError `json:"error,omitempty"`
}
