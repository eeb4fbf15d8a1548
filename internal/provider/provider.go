// Package provider defines the capability surface every database engine
// implementation must satisfy and the registry that looks
// providers up by engine tag.
package provider

import (
	"context"
	"time"

	"github.com/justengland/gatekeeper/internal/domain"
)

// ConnectionInfo is the connection record a provider opens its admin pool
// against: host, port, database, and SSL mode.
type ConnectionInfo struct {
	Host     string
	Port     int
	Database string
	SSLMode  string
}

// Credentials are the admin principal's login used to open the pool.
type Credentials struct {
	Username string
	Password string
}

// CreateRequest carries the orchestrator-generated material for a new
// ephemeral principal. The provider never invents a name or password; it
// only enforces the pattern and persists what it is given.
type CreateRequest struct {
	Name            string
	Password        string
	RolePack        string
	TTLMinutes      int
	ConnectionLimit int
}

// CreateResult is what a successful createEphemeralUser returns.
type CreateResult struct {
	Name            string
	DSN             string
	ExpiresAt       time.Time
	ConnectionLimit int
	Metadata        map[string]interface{}
}

// Provider is the capability surface for one database engine.
type Provider interface {
	Initialize(ctx context.Context, conn ConnectionInfo, creds Credentials) error
	HealthCheck(ctx context.Context) (domain.Health, error)
	CreateEphemeralUser(ctx context.Context, req CreateRequest) (CreateResult, error)
	DropUser(ctx context.Context, name string) (bool, error)
	ListEphemeralUsers(ctx context.Context) ([]domain.EphemeralUser, error)
	CleanupExpiredUsers(ctx context.Context, olderThanMinutes int) ([]domain.CleanupRow, error)
	GetAvailableRolePacks(ctx context.Context) ([]domain.RolePack, error)
	InstallRolePack(ctx context.Context, pack domain.RolePack) error
	GenerateDSN(conn ConnectionInfo, name, password string) string
	TestConnection(ctx context.Context, dsn string) error
	Close() error

	// Engine returns the provider's engine tag (e.g. "postgresql").
	Engine() string
	// Version returns the provider implementation's version tag.
	Version() string
}
