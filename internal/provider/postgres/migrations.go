package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// migrationRunner installs the bootstrap schema into a target database.
// Unlike a process-wide migrator pointed at one operational database, it
// runs once per Initialize against whichever target credentials are being
// issued for. Its tracking table is therefore namespaced — the target may
// well carry a schema_migrations of its own — and every previously
// applied version is checksum-verified on re-entry, so a target whose
// bootstrap no longer matches the embedded SQL fails loudly instead of
// being silently skipped.
type migrationRunner struct {
	db     *sql.DB
	logger zerolog.Logger
}

func newMigrationRunner(db *sql.DB, logger zerolog.Logger) *migrationRunner {
	return &migrationRunner{db: db, logger: logger}
}

func (m *migrationRunner) run(ctx context.Context, migrationsFS embed.FS, dir string) error {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gatekeeper_schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create migration tracking table: %w", err)
	}

	applied, err := m.appliedChecksums(ctx)
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrationsFS, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := checksum(content)

		if stored, ok := applied[name]; ok {
			if stored != sum {
				return fmt.Errorf("migration %s recorded with checksum %s but embedded content hashes to %s: target bootstrap has drifted", name, stored, sum)
			}
			continue
		}

		m.logger.Info().Str("migration", name).Msg("applying bootstrap migration")
		if err := m.apply(ctx, name, string(content), sum); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (m *migrationRunner) appliedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, checksum FROM gatekeeper_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, sum string
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, err
		}
		applied[version] = sum
	}
	return applied, rows.Err()
}

func (m *migrationRunner) apply(ctx context.Context, name, content, sum string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gatekeeper_schema_migrations (version, checksum) VALUES ($1, $2)`,
		name, sum,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func checksum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
