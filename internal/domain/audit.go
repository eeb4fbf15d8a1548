package domain

import "time"

// AuditEventType enumerates the event types the core emits.
type AuditEventType string

const (
	AuditSetupCompleted  AuditEventType = "setup.completed"
	AuditSessionCreated  AuditEventType = "session.created"
	AuditSessionRevoked  AuditEventType = "session.revoked"
	AuditSessionsCleaned AuditEventType = "sessions.cleaned"
)

// AuditEvent is an append-only, hash-chained audit record.
// EventHash is a content hash over {EventType, EventData}; PrevHash chains
// to the previous row (empty for the first row). Created by the
// orchestrator, or by the bootstrap install for setup.completed; never
// updated or deleted.
type AuditEvent struct {
	ID            int64                  `json:"id"`
	EventType     AuditEventType         `json:"eventType"`
	SessionID     string                 `json:"sessionId,omitempty"`
	Username      string                 `json:"username,omitempty"`
	CorrelationID string                 `json:"correlationId"`
	EventData     map[string]interface{} `json:"eventData"`
	CreatedAt     time.Time              `json:"createdAt"`
	PrevHash      string                 `json:"prevHash,omitempty"`
	EventHash     string                 `json:"eventHash"`
}
