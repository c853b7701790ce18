// Package migrations applies the ledger schema. Each file under sql/ is one version,
// applied once in lexical order and recorded in schema_migrations.
package migrations

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/postgres"
	"github.com/samber/lo"
)

//go:embed sql/*.sql
var files embed.FS

// advisory lock key held while migrating so two migrators never interleave
const migrationLockKey = 727274

// Migration is one versioned schema file
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// Load returns every embedded migration sorted by version
func Load() ([]Migration, error) {
	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, err := files.ReadFile(path.Join("sql", e.Name()))
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(e.Name(), ".sql")
		version, name, _ := strings.Cut(base, "_")
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrator applies pending migrations
type Migrator struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewMigrator(db *postgres.DB, logger *logger.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// Pending returns the migrations not yet recorded in schema_migrations
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	all, err := Load()
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	var applied []string
	if err := m.db.GetQuerier(ctx).SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return nil, postgres.MapError(err, "list applied migrations")
	}

	return lo.Filter(all, func(mg Migration, _ int) bool {
		return !lo.Contains(applied, mg.Version)
	}), nil
}

// Up applies every pending migration in one transaction and returns the applied versions
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	var done []string
	err := m.db.WithTx(ctx, func(ctx context.Context) error {
		q := m.db.GetQuerier(ctx)
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return postgres.MapError(err, "lock migrations")
		}

		pending, err := m.Pending(ctx)
		if err != nil {
			return err
		}

		for _, mg := range pending {
			m.logger.Infow("applying migration", "version", mg.Version, "name", mg.Name)
			if _, err := q.ExecContext(ctx, mg.SQL); err != nil {
				return ierr.WithError(postgres.MapError(err, "apply migration")).
					WithHintf("Migration %s_%s failed", mg.Version, mg.Name).
					Mark(ierr.ErrDatabase)
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mg.Version, mg.Name); err != nil {
				return postgres.MapError(err, "record migration")
			}
			done = append(done, mg.Version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.GetQuerier(ctx).ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(20) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return postgres.MapError(err, "create schema_migrations")
}
