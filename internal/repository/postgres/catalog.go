package postgres

import (
	"context"

	"github.com/flexprice/ispledger/internal/catalog"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/postgres"
)

type catalogRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewCatalogRepository reads the charge_types and charge_states tables
func NewCatalogRepository(db *postgres.DB, logger *logger.Logger) catalog.Source {
	return &catalogRepository{db: db, logger: logger}
}

func (r *catalogRepository) ListChargeTypes(ctx context.Context) ([]catalog.Entry, error) {
	return r.list(ctx, "charge_types")
}

func (r *catalogRepository) ListChargeStates(ctx context.Context) ([]catalog.Entry, error) {
	return r.list(ctx, "charge_states")
}

func (r *catalogRepository) list(ctx context.Context, table string) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &entries, `SELECT id, code, name FROM `+table+` ORDER BY id`); err != nil {
		return nil, postgres.MapError(err, "list "+table)
	}

	r.logger.Debugw("loaded catalog", "table", table, "entries", len(entries))
	return entries, nil
}
