package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/ispledger/internal/api"
	"github.com/flexprice/ispledger/internal/cache"
	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/events"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/metrics"
	"github.com/flexprice/ispledger/internal/postgres"
	"github.com/flexprice/ispledger/internal/publisher"
	"github.com/flexprice/ispledger/internal/pubsub"
	"github.com/flexprice/ispledger/internal/pubsub/kafka"
	"github.com/flexprice/ispledger/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/ispledger/internal/pubsub/router"
	"github.com/flexprice/ispledger/internal/repository"
	"github.com/flexprice/ispledger/internal/sentry"
	"github.com/flexprice/ispledger/internal/service"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Metrics
			metrics.NewMetrics,

			// Cache
			cache.NewInMemoryCache,

			// PubSub
			providePubSub,
			publisher.NewEventPublisher,
			pubsubRouter.NewRouter,

			// Repositories
			repository.NewCatalog,
			repository.NewChargeRepository,
			repository.NewPaymentRepository,
			repository.NewCreditRepository,
			repository.NewSubscriptionRepository,
		),
		sentry.Module(),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewChargeLedgerService,
			service.NewProrationService,
			service.NewRecurringChargeService,
			service.NewPaymentAllocatorService,
			service.NewCreditBalanceService,
			service.NewInstallationService,

			events.NewHandler,
		),
	)

	// Ops endpoint
	opts = append(opts,
		fx.Provide(
			providePinger,
			api.NewHealthHandler,
			api.NewRouter,
		),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func providePubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.Event.PubSub {
	case types.KafkaPubSub:
		return kafka.NewPubSub(cfg, logger)
	default:
		return memory.NewPubSub(logger), nil
	}
}

func providePinger(db *postgres.DB) api.Pinger {
	return db
}

func startServer(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	handler events.Handler,
	recurring service.RecurringChargeService,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startOpsServer(lc, r, cfg, log)
		startMessageRouter(lc, router, handler, log)
	case types.ModeConsumer:
		startMessageRouter(lc, router, handler, log)
	case types.ModeBillingRun:
		startBillingRun(lc, shutdowner, cfg, recurring, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startOpsServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting ops server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down ops server")
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	handler events.Handler,
	log *logger.Logger,
) {
	// Register handlers before starting the router
	handler.RegisterHandlers(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					log.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping message router")
			return router.Close()
		},
	})
}

// startBillingRun generates the charges of the configured period, the current month by
// default, then stops the application
func startBillingRun(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Configuration,
	recurring service.RecurringChargeService,
	log *logger.Logger,
) {
	period := types.PeriodOf(time.Now())
	if cfg.Ledger.BillingRunPeriod != "" {
		p, err := types.ParseBillingPeriod(cfg.Ledger.BillingRunPeriod)
		if err != nil {
			log.Fatalf("Invalid billing run period %q: %v", cfg.Ledger.BillingRunPeriod, err)
		}
		period = p
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ctx := types.WithDefaultTenant(context.Background())
				resp, err := recurring.RunBillingPeriod(ctx, period)
				exitCode := 0
				if err != nil {
					log.Errorw("billing run failed", "period", period.String(), "error", err)
					exitCode = 1
				} else if resp.Failed > 0 {
					log.Warnw("billing run finished with failures",
						"run_id", resp.RunID,
						"failed", resp.Failed,
					)
					exitCode = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					log.Errorw("failed to stop after billing run", "error", err)
				}
			}()
			return nil
		},
	})
}
