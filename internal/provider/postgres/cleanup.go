package postgres

import (
	"context"

	"github.com/justengland/gatekeeper/internal/domain"
	"github.com/justengland/gatekeeper/internal/provider"
)

// CleanupExpiredUsers invokes gatekeeper_cleanup_expired, which drops every
// gk_ principal whose expiry is older than now minus olderThanMinutes
// (including principals with no expiry set at all, which the helper
// treats as overdue rather than eternal). Per-principal drop failures
// are reported in the returned row, not as a call-level error.
func (p *Provider) CleanupExpiredUsers(ctx context.Context, olderThanMinutes int) ([]domain.CleanupRow, error) {
	if p.db == nil {
		return nil, provider.NewError(engineTag, provider.CodeNotInitialized, false, "provider not initialized")
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `SELECT name, was_expired, dropped, error_message FROM gatekeeper_cleanup_expired($1)`, olderThanMinutes)
	if err != nil {
		return nil, provider.NewError(engineTag, provider.CodeCleanupFailed, true, "cleanup expired users: %v", err)
	}
	defer rows.Close()

	var out []domain.CleanupRow
	for rows.Next() {
		var r domain.CleanupRow
		var errMsg *string
		if err := rows.Scan(&r.Name, &r.WasExpired, &r.Dropped, &errMsg); err != nil {
			return nil, provider.NewError(engineTag, provider.CodeCleanupFailed, false, "scan cleanup row: %v", err)
		}
		if errMsg != nil {
			r.ErrorMessage = *errMsg
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, provider.NewError(engineTag, provider.CodeCleanupFailed, true, "iterate cleanup rows: %v", err)
	}

	return out, nil
}
