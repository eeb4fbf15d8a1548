package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/justengland/gatekeeper/internal/provider"
)

// GenerateDSN builds a libpq-style connection string for name/password
// against conn. The password is URL-escaped so generated secrets containing
// reserved characters never corrupt the DSN.
func (p *Provider) GenerateDSN(conn provider.ConnectionInfo, name, password string) string {
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	userinfo := url.UserPassword(name, password)
	return fmt.Sprintf("postgresql://%s@%s:%d/%s?sslmode=%s",
		userinfo.String(), conn.Host, conn.Port, conn.Database, sslMode)
}

// TestConnection opens a short-lived connection against dsn and pings it,
// a best-effort check that a credential works. CreateEphemeralUser does
// not call it.
func (p *Provider) TestConnection(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return provider.NewError(engineTag, provider.CodeUserCreateFailed, false, "open test connection: %v", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return provider.NewError(engineTag, provider.CodeUserCreateFailed, true, "test connection failed: %v", err)
	}
	return nil
}
