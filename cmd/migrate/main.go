package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/migrations"
	"github.com/flexprice/ispledger/internal/postgres"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Print pending migration SQL without executing it")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrator := migrations.NewMigrator(db, logger)

	if *dryRun {
		logger.Info("Dry run mode - printing pending migrations without executing")
		pending, err := migrator.Pending(ctx)
		if err != nil {
			logger.Fatalw("Failed to list pending migrations", "error", err)
		}
		for _, m := range pending {
			fmt.Printf("-- %s_%s\n%s\n", m.Version, m.Name, m.SQL)
		}
		fmt.Printf("%d pending migrations\n", len(pending))
		return
	}

	logger.Info("Running database migrations...")
	applied, err := migrator.Up(ctx)
	if err != nil {
		logger.Fatalw("Failed to apply migrations", "error", err)
	}
	logger.Infow("Migration completed successfully", "applied", applied)
}
