// Package auditlog implements the append-only, hash-chained audit writer
// the bootstrap schema's audit table exists for. Events persist to the
// target database's gatekeeper_audit_log table, and each row's hash
// chains to the previous row's hash so tampering is detectable.
package auditlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/justengland/gatekeeper/internal/domain"
)

// Writer appends audit events to gatekeeper_audit_log on a single
// Postgres connection pool. The chain invariant is preserved by
// serialising inserts: each Write takes a transaction, locks the tail
// row, then appends. Audit throughput is bounded by that lock.
type Writer struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New builds a Writer over db, the same admin pool the PostgreSQL
// provider opened.
func New(db *sql.DB, logger zerolog.Logger) *Writer {
	return &Writer{db: db, logger: logger}
}

// Write appends event, computing its event_hash and chaining prev_hash to
// the current tail. The caller supplies everything but the hashes and the
// row id.
func (w *Writer) Write(ctx context.Context, event domain.AuditEvent) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE gatekeeper_audit_log IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}

	var prevHash sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT event_hash FROM gatekeeper_audit_log ORDER BY id DESC LIMIT 1 FOR UPDATE`).Scan(&prevHash)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read audit tail: %w", err)
	}

	eventData, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	eventHash := contentHash(prevHash.String, string(event.EventType), eventData)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO gatekeeper_audit_log
			(event_type, session_id, username, correlation_id, event_data, prev_hash, event_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(event.EventType), nullIfEmpty(event.SessionID), nullIfEmpty(event.Username),
		event.CorrelationID, eventData, prevHash, eventHash)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit event: %w", err)
	}

	w.logger.Info().
		Str("event_type", string(event.EventType)).
		Str("correlation_id", event.CorrelationID).
		Msg("audit event recorded")
	return nil
}

// LookupUsernameBySession returns the username recorded on the
// session.created event for sessionID, if one was ever written. Revoke
// dispatch relies on this in the absence of a durable session map.
func (w *Writer) LookupUsernameBySession(ctx context.Context, sessionID string) (string, bool, error) {
	var username sql.NullString
	err := w.db.QueryRowContext(ctx, `
		SELECT username FROM gatekeeper_audit_log
		WHERE session_id = $1 AND event_type = $2
		ORDER BY id DESC LIMIT 1
	`, sessionID, string(domain.AuditSessionCreated)).Scan(&username)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup session username: %w", err)
	}
	if !username.Valid || username.String == "" {
		return "", false, nil
	}
	return username.String, true, nil
}

func contentHash(prevHash, eventType string, eventData []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte(eventType))
	h.Write(eventData)
	return hex.EncodeToString(h.Sum(nil))
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
