package postgres

import (
	"context"
	"time"

	"github.com/justengland/gatekeeper/internal/provider"
)

// CreateEphemeralUser invokes gatekeeper_create_ephemeral with the
// orchestrator-generated name and password, then returns a DSN the caller
// can hand to the requester. The provider never generates the
// name or password itself; it only enforces the helper routine's contract.
func (p *Provider) CreateEphemeralUser(ctx context.Context, req provider.CreateRequest) (provider.CreateResult, error) {
	if p.db == nil {
		return provider.CreateResult{}, provider.NewError(engineTag, provider.CodeNotInitialized, false, "provider not initialized")
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	expiresAt := time.Now().Add(time.Duration(req.TTLMinutes) * time.Minute).UTC()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return provider.CreateResult{}, provider.NewError(engineTag, provider.CodeUserCreateFailed, true, "begin create transaction: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`SELECT gatekeeper_create_ephemeral($1, $2, $3, $4, $5)`,
		req.Name, req.Password, expiresAt, req.RolePack, req.ConnectionLimit,
	)
	if err != nil {
		return provider.CreateResult{}, classifyCreateErr(err)
	}
	if err := tx.Commit(); err != nil {
		return provider.CreateResult{}, provider.NewError(engineTag, provider.CodeUserCreateFailed, true, "commit create transaction: %v", err)
	}

	dsn := p.GenerateDSN(p.info, req.Name, req.Password)

	return provider.CreateResult{
		Name:            req.Name,
		DSN:             dsn,
		ExpiresAt:       expiresAt,
		ConnectionLimit: req.ConnectionLimit,
		Metadata: map[string]interface{}{
			"role_pack":      req.RolePack,
			"engine":         engineTag,
			"server_version": p.serverVersion,
		},
	}, nil
}
