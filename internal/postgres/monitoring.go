package postgres

import (
	"context"

	"github.com/flexprice/ispledger/internal/logger"
	sentryService "github.com/flexprice/ispledger/internal/sentry"
)

// SentryClient wraps the transaction client with Sentry monitoring
type SentryClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

// NewSentryClient creates a new Sentry-instrumented Postgres client
func NewSentryClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

// WithTx wraps the given function in a transaction with Sentry span tracking.
// Nested calls are not given their own span.
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if c.client.InTx(ctx) {
		return c.client.WithTx(ctx, fn)
	}

	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
	})
	err := c.client.WithTx(spanCtx, fn)
	if span != nil {
		if err != nil {
			c.sentry.SetSpanError(span, err)
		} else {
			c.sentry.SetSpanSuccess(span)
		}
		span.Finish()
	}
	return err
}

func (c *SentryClient) InTx(ctx context.Context) bool {
	return c.client.InTx(ctx)
}
