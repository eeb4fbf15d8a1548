package postgres

import (
	"context"

	"github.com/justengland/gatekeeper/internal/domain"
	"github.com/justengland/gatekeeper/internal/provider"
)

// GetAvailableRolePacks reports every role pack installed in
// gatekeeper_role_packs, the registry the bootstrap migration seeds and
// InstallRolePack updates.
func (p *Provider) GetAvailableRolePacks(ctx context.Context) ([]domain.RolePack, error) {
	if p.db == nil {
		return nil, provider.NewError(engineTag, provider.CodeNotInitialized, false, "provider not initialized")
	}

	rows, err := p.db.QueryContext(ctx, `SELECT name, version, description FROM gatekeeper_role_packs ORDER BY name`)
	if err != nil {
		return nil, provider.NewError(engineTag, provider.CodeRolePackError, true, "list role packs: %v", err)
	}
	defer rows.Close()

	var packs []domain.RolePack
	for rows.Next() {
		var pack domain.RolePack
		if err := rows.Scan(&pack.Name, &pack.Version, &pack.Description); err != nil {
			return nil, provider.NewError(engineTag, provider.CodeRolePackError, false, "scan role pack row: %v", err)
		}
		pack.Engine = engineTag
		packs = append(packs, pack)
	}
	if err := rows.Err(); err != nil {
		return nil, provider.NewError(engineTag, provider.CodeRolePackError, true, "iterate role pack rows: %v", err)
	}

	return packs, nil
}

// InstallRolePack applies pack.Statements against the gk_role_<name>
// principal and records the new version in the registry. Statements run in
// a single transaction: either the whole pack lands or none of it does.
func (p *Provider) InstallRolePack(ctx context.Context, pack domain.RolePack) error {
	if p.db == nil {
		return provider.NewError(engineTag, provider.CodeNotInitialized, false, "provider not initialized")
	}
	if pack.Engine != "" && pack.Engine != engineTag {
		return provider.NewError(engineTag, provider.CodeRolePackError, false, "role pack targets engine %q, not %q", pack.Engine, engineTag)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return provider.NewError(engineTag, provider.CodeRolePackError, true, "begin install transaction: %v", err)
	}
	defer tx.Rollback()

	for _, stmt := range pack.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return provider.NewError(engineTag, provider.CodeRolePackError, false, "apply role pack statement: %v", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO gatekeeper_role_packs (name, version, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET version = EXCLUDED.version, description = EXCLUDED.description, installed_at = now()
	`, pack.Name, pack.Version, pack.Description)
	if err != nil {
		return provider.NewError(engineTag, provider.CodeRolePackError, true, "record role pack install: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return provider.NewError(engineTag, provider.CodeRolePackError, true, "commit role pack install: %v", err)
	}

	p.logger.Info().Str("pack", pack.Name).Str("version", pack.Version).Msg("role pack installed")
	return nil
}
