package postgres

import (
	"context"

	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/logger"
	sentryService "github.com/flexprice/ispledger/internal/sentry"
	"go.uber.org/fx"
)

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction; nested calls run inside a savepoint
	WithTx(ctx context.Context, fn func(context.Context) error) error

	// InTx reports whether ctx already carries a transaction
	InTx(ctx context.Context) bool
}

// Module provides the database and the instrumented client
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
		fx.Invoke(registerHooks),
	)
}

// NewClient returns the sentry instrumented transaction client over db
func NewClient(db *DB, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return NewSentryClient(db, sentry, logger)
}

// InTx reports whether ctx already carries a transaction
func (db *DB) InTx(ctx context.Context) bool {
	_, ok := GetTx(ctx)
	return ok
}

func registerHooks(lc fx.Lifecycle, db *DB, cfg *config.Configuration, logger *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			logger.Infow("connected to postgres",
				"host", cfg.Postgres.Host,
				"dbname", cfg.Postgres.DBName,
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			db.Close()
			return nil
		},
	})
}
