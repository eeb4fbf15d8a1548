package domain

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ValidationError names the offending field so a caller can point a user
// at exactly what was wrong.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	sessionIDPattern = regexp.MustCompile(`^ses_[A-Za-z0-9]{4,60}$`)
	targetIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	usernamePattern  = regexp.MustCompile(`^gk_[A-Za-z0-9]{1,60}$`)
)

// ValidateTTL enforces TTL within [1, maxTTLMinutes].
func ValidateTTL(ttlMinutes, maxTTLMinutes int) error {
	if ttlMinutes < 1 || ttlMinutes > maxTTLMinutes {
		return &ValidationError{
			Field:   "ttlMinutes",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", maxTTLMinutes, ttlMinutes),
		}
	}
	return nil
}

// ValidateCorrelationID requires a UUID-shaped string.
func ValidateCorrelationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Field: "correlationId", Message: "must be a UUID"}
	}
	return nil
}

// ValidateSessionID enforces the ses_[alphanumeric]{4,60} pattern.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return &ValidationError{Field: "sessionId", Message: "must match ses_[A-Za-z0-9]{4,60}"}
	}
	return nil
}

// ValidateTargetID enforces the [A-Za-z0-9_-]{1,64} pattern, used where a
// target is referenced by a stable id rather than inline host/port/db.
func ValidateTargetID(id string) error {
	if !targetIDPattern.MatchString(id) {
		return &ValidationError{Field: "targetId", Message: "must match [A-Za-z0-9_-]{1,64}"}
	}
	return nil
}

// ValidateUsername enforces the gk_[A-Za-z0-9]{1,60} pattern. The
// bootstrap helper's server-side check is looser: it also admits
// underscores after the gk_ prefix.
func ValidateUsername(name string) error {
	if !usernamePattern.MatchString(name) {
		return &ValidationError{Field: "username", Message: "must match gk_[A-Za-z0-9]{1,60}"}
	}
	return nil
}

// ValidateReason enforces the <=256 char bound; empty is allowed.
func ValidateReason(reason string) error {
	if len(reason) > 256 {
		return &ValidationError{Field: "reason", Message: "must be 256 characters or fewer"}
	}
	return nil
}

// ValidateJobID enforces the 1..128 char bound on the idempotency handle.
func ValidateJobID(id string) error {
	if len(id) < 1 || len(id) > 128 {
		return &ValidationError{Field: "id", Message: "must be between 1 and 128 characters"}
	}
	return nil
}

// ValidateRole enforces the read|write|admin enumeration.
func ValidateRole(r Role) error {
	if !r.Valid() {
		return &ValidationError{Field: "role", Message: "must be one of read, write, admin"}
	}
	return nil
}
