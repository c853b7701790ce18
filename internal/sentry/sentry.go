package sentry

import (
	"context"
	"time"

	"github.com/flexprice/ispledger/internal/config"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
)

type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

// Module provides fx options for Sentry
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewSentryService),
		fx.Invoke(RegisterHooks),
	)
}

// RegisterHooks initialises the SDK on start and flushes it on stop
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !svc.cfg.Sentry.Enabled {
				svc.logger.Info("Sentry is disabled")
				return nil
			}

			err := sentry.Init(sentry.ClientOptions{
				Dsn:              svc.cfg.Sentry.DSN,
				Environment:      svc.cfg.Sentry.Environment,
				EnableTracing:    true,
				TracesSampleRate: svc.cfg.Sentry.SampleRate,
			})
			if err != nil {
				svc.logger.Errorw("Failed to initialize Sentry", "error", err)
				return err
			}
			svc.logger.Infow("Sentry initialized successfully",
				"environment", svc.cfg.Sentry.Environment,
				"sample_rate", svc.cfg.Sentry.SampleRate,
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if svc.cfg.Sentry.Enabled {
				svc.logger.Info("Flushing Sentry events before shutdown")
				sentry.Flush(2 * time.Second)
			}
			return nil
		},
	})
}

// NewSentryService creates a new Sentry service
func NewSentryService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Sentry.Enabled
}

// CaptureException reports err together with its ledger error code and reportable details
func (s *Service) CaptureException(err error) {
	if !s.Enabled() || err == nil {
		return
	}
	report := ierr.NewReport(err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error.code", report.Code)
		if len(report.Details) > 0 {
			scope.SetContext("ledger", sentry.Context(report.Details))
		}
		sentry.CaptureException(err)
	})
}

// StartDBSpan starts a new database span in the current transaction
func (s *Service) StartDBSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.Enabled() {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = operation
	span.Op = "db.postgres"
	for k, v := range params {
		span.SetData(k, v)
	}

	return span, span.Context()
}

// StartEventSpan starts a transaction for one consumed ledger event and records its lag
func (s *Service) StartEventSpan(ctx context.Context, topic string, publishedAt time.Time) (*sentry.Span, context.Context) {
	if !s.Enabled() {
		return nil, ctx
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		ctx = sentry.SetHubOnContext(ctx, sentry.CurrentHub().Clone())
	}

	tx := sentry.StartTransaction(ctx, "event.process."+topic,
		sentry.WithOpName("event.process"),
		sentry.WithTransactionSource(sentry.SourceCustom),
	)
	tx.SetData("topic", topic)
	if !publishedAt.IsZero() {
		tx.SetData("lag_ms", time.Since(publishedAt).Milliseconds())
	}

	return tx, tx.Context()
}

// SetSpanError marks a span as failed and adds error information
func (s *Service) SetSpanError(span *sentry.Span, err error) {
	SetSpanError(span, err)
}

// SetSpanSuccess marks a span as successful
func (s *Service) SetSpanSuccess(span *sentry.Span) {
	SetSpanSuccess(span)
}
