package postgres

import (
	"context"

	"github.com/justengland/gatekeeper/internal/provider"
)

// DropUser invokes gatekeeper_drop, which terminates any live backends for
// name and removes the principal. It reports false rather than erroring
// when name never existed, matching the helper routine's idempotent
// contract.
func (p *Provider) DropUser(ctx context.Context, name string) (bool, error) {
	if p.db == nil {
		return false, provider.NewError(engineTag, provider.CodeNotInitialized, false, "provider not initialized")
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	var dropped bool
	err := p.db.QueryRowContext(ctx, `SELECT gatekeeper_drop($1)`, name).Scan(&dropped)
	if err != nil {
		return false, classifyDropErr(err)
	}
	return dropped, nil
}
