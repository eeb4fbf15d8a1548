package postgres

import (
	"context"
	"database/sql"

	"github.com/justengland/gatekeeper/internal/domain"
	"github.com/justengland/gatekeeper/internal/provider"
)

// ListEphemeralUsers reports every gk_ principal currently installed,
// regardless of which job created it. A principal with no expiry is
// reported with a zero ExpiresAt.
func (p *Provider) ListEphemeralUsers(ctx context.Context) ([]domain.EphemeralUser, error) {
	if p.db == nil {
		return nil, provider.NewError(engineTag, provider.CodeNotInitialized, false, "provider not initialized")
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `SELECT name, expires_at, is_expired, connection_limit, active_connections FROM gatekeeper_list_ephemeral()`)
	if err != nil {
		return nil, provider.NewError(engineTag, provider.CodeUserListFailed, true, "list ephemeral users: %v", err)
	}
	defer rows.Close()

	var users []domain.EphemeralUser
	for rows.Next() {
		var u domain.EphemeralUser
		var expiresAt sql.NullTime
		if err := rows.Scan(&u.Name, &expiresAt, &u.IsExpired, &u.ConnectionLimit, &u.ActiveConnections); err != nil {
			return nil, provider.NewError(engineTag, provider.CodeUserListFailed, false, "scan ephemeral user row: %v", err)
		}
		if expiresAt.Valid {
			u.ExpiresAt = expiresAt.Time
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, provider.NewError(engineTag, provider.CodeUserListFailed, true, "iterate ephemeral user rows: %v", err)
	}

	return users, nil
}
