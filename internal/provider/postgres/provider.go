// Package postgres implements the Provider interface for
// PostgreSQL engines. It never issues DDL for ephemeral principals
// directly; every mutating operation goes through the privileged helper
// routines installed by the embedded bootstrap migration, so the admin
// pool's own grants never need CREATEROLE beyond what the routines need.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/justengland/gatekeeper/internal/domain"
	"github.com/justengland/gatekeeper/internal/provider"
)

const (
	engineTag       = "postgresql"
	providerVersion = "pg-1.0.0"

	maxOpenConns    = 10
	maxIdleConns    = 2
	connMaxIdleTime = 30 * time.Second
	connectTimeout  = 10 * time.Second
	queryTimeout    = 25 * time.Second
)

//go:embed migrations/*.sql
var bootstrapFS embed.FS

// Provider is the PostgreSQL engine implementation.
type Provider struct {
	db            *sql.DB
	logger        zerolog.Logger
	info          provider.ConnectionInfo
	serverVersion string

	poolMaxOpen     int
	poolMaxIdle     int
	poolMaxLifetime time.Duration
}

// New builds an uninitialized PostgreSQL provider. Call Initialize before
// any other method.
func New(logger zerolog.Logger) *Provider {
	return &Provider{
		logger:          logger,
		poolMaxOpen:     maxOpenConns,
		poolMaxIdle:     maxIdleConns,
		poolMaxLifetime: 30 * time.Minute,
	}
}

// SetPoolBounds overrides the default admin-pool sizing. Must be called
// before Initialize; later calls have no effect on an open pool.
func (p *Provider) SetPoolBounds(maxOpen, maxIdle int, maxLifetime time.Duration) {
	if maxOpen > 0 {
		p.poolMaxOpen = maxOpen
	}
	if maxIdle > 0 {
		p.poolMaxIdle = maxIdle
	}
	if maxLifetime > 0 {
		p.poolMaxLifetime = maxLifetime
	}
}

// Factory adapts New to the provider.Factory signature for registration.
func Factory(logger zerolog.Logger) provider.Factory {
	return func() provider.Provider { return New(logger) }
}

func (p *Provider) Engine() string  { return engineTag }
func (p *Provider) Version() string { return providerVersion }

// DB exposes the admin pool so collaborators outside this package (the
// audit writer) can share it instead of opening a second connection to
// the same database. Returns nil until Initialize has succeeded.
func (p *Provider) DB() *sql.DB { return p.db }

// Initialize opens the admin pool against conn using creds, verifies
// connectivity, and runs the bootstrap migration idempotently.
// Subsequent calls after a successful Initialize are no-ops. Initialize
// takes no lock of its own, so concurrent first calls are not safe; the
// orchestrator runs it under a sync.Once.
func (p *Provider) Initialize(ctx context.Context, conn provider.ConnectionInfo, creds provider.Credentials) error {
	if p.db != nil {
		return nil
	}

	dsn := p.GenerateDSN(conn, creds.Username, creds.Password)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return provider.NewError(engineTag, provider.CodeProviderInitError, false, "open admin pool: %v", err)
	}
	db.SetMaxOpenConns(p.poolMaxOpen)
	db.SetMaxIdleConns(p.poolMaxIdle)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(p.poolMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return provider.NewError(engineTag, provider.CodeProviderInitError, true, "ping admin pool: %v", err)
	}

	if err := db.QueryRowContext(pingCtx, `SELECT current_setting('server_version')`).Scan(&p.serverVersion); err != nil {
		p.logger.Warn().Err(err).Msg("could not read server version")
	}

	runner := newMigrationRunner(db, p.logger)
	if err := runner.run(ctx, bootstrapFS, "migrations"); err != nil {
		db.Close()
		return provider.NewError(engineTag, provider.CodeProviderInitError, false, "run bootstrap migration: %v", err)
	}

	p.db = db
	p.info = conn

	p.logger.Info().
		Str("host", conn.Host).
		Int("port", conn.Port).
		Str("database", conn.Database).
		Str("sslmode", conn.SSLMode).
		Msg("postgresql provider initialized")
	return nil
}

// HealthCheck runs the installed validate_setup routine and reports the
// worst status among its checks, mapped to healthy/degraded/unhealthy.
func (p *Provider) HealthCheck(ctx context.Context) (domain.Health, error) {
	if p.db == nil {
		return domain.Health{}, provider.NewError(engineTag, provider.CodeNotInitialized, false, "provider not initialized")
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.db.PingContext(checkCtx); err != nil {
		return domain.Health{
			Status:    domain.HealthUnhealthy,
			Message:   fmt.Sprintf("ping failed: %v", err),
			CheckedAt: time.Now(),
		}, nil
	}

	rows, err := p.db.QueryContext(checkCtx, `SELECT check_name, status, details FROM gatekeeper_validate_setup()`)
	if err != nil {
		return domain.Health{
			Status:    domain.HealthDegraded,
			Message:   fmt.Sprintf("validate_setup unavailable: %v", err),
			CheckedAt: time.Now(),
		}, nil
	}
	defer rows.Close()

	checks := make(map[string]interface{})
	status := domain.HealthHealthy
	for rows.Next() {
		var name, rowStatus, rowDetails string
		if err := rows.Scan(&name, &rowStatus, &rowDetails); err != nil {
			return domain.Health{}, provider.NewError(engineTag, provider.CodeInternal, false, "scan validate_setup row: %v", err)
		}
		checks[name] = map[string]interface{}{"status": rowStatus, "details": rowDetails}
		if rowStatus != "green" {
			status = domain.HealthDegraded
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Health{}, provider.NewError(engineTag, provider.CodeInternal, true, "iterate validate_setup rows: %v", err)
	}

	stats := p.db.Stats()
	return domain.Health{
		Status:    status,
		Message:   "bootstrap checks evaluated",
		CheckedAt: time.Now(),
		Details: map[string]interface{}{
			"checks": checks,
			"pool": map[string]interface{}{
				"open":    stats.OpenConnections,
				"idle":    stats.Idle,
				"in_use":  stats.InUse,
				"waiting": stats.WaitCount,
			},
		},
	}, nil
}

// opContext bounds one provider operation's statements to the per-query
// timeout.
func (p *Provider) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// Close releases the admin pool.
func (p *Provider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
