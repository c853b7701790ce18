package service

import (
	"context"

	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/credit"
	"github.com/flexprice/ispledger/internal/domain/payment"
	"github.com/flexprice/ispledger/internal/domain/proration"
	"github.com/flexprice/ispledger/internal/domain/subscription"
	"github.com/flexprice/ispledger/internal/idempotency"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/metrics"
	"github.com/flexprice/ispledger/internal/postgres"
	"github.com/flexprice/ispledger/internal/publisher"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger      *logger.Logger
	Config      *config.Configuration
	DB          postgres.IClient
	Metrics     *metrics.Metrics
	Publisher   publisher.EventPublisher
	Idempotency *idempotency.Generator
	Calculator  proration.Calculator

	// Repositories
	ChargeRepo  charge.Repository
	PaymentRepo payment.Repository
	CreditRepo  credit.Repository
	SubRepo     subscription.Repository
}

// NewServiceParams creates a new service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	metrics *metrics.Metrics,
	publisher publisher.EventPublisher,
	chargeRepo charge.Repository,
	paymentRepo payment.Repository,
	creditRepo credit.Repository,
	subRepo subscription.Repository,
) ServiceParams {
	return ServiceParams{
		Logger:      logger,
		Config:      config,
		DB:          db,
		Metrics:     metrics,
		Publisher:   publisher,
		Idempotency: idempotency.NewGenerator(),
		Calculator:  proration.NewCalculator(),
		ChargeRepo:  chargeRepo,
		PaymentRepo: paymentRepo,
		CreditRepo:  creditRepo,
		SubRepo:     subRepo,
	}
}

// publish sends a notification for a committed change. A failed publish is logged and
// never undoes the change.
func (p ServiceParams) publish(ctx context.Context, name types.LedgerEventName, clientID string, payload interface{}) {
	event, err := publisher.NewLedgerEvent(ctx, name, clientID, payload)
	if err == nil {
		err = p.Publisher.Publish(ctx, event)
	}
	if err != nil {
		p.Logger.Errorw("failed to publish ledger event",
			"event_name", name,
			"client_id", clientID,
			"error", err,
		)
	}
}

// insertCharge creates c inside its own savepoint so a lost uniqueness race leaves the
// surrounding transaction usable
func (p ServiceParams) insertCharge(ctx context.Context, c *charge.Charge) error {
	return p.DB.WithTx(ctx, func(ctx context.Context) error {
		return p.ChargeRepo.Create(ctx, c)
	})
}

// applyToCharge adds amount to a charge read under lock and persists it guarded on the
// amount paid that was read
func (p ServiceParams) applyToCharge(ctx context.Context, c *charge.Charge, amount decimal.Decimal) error {
	expected := c.AmountPaid
	if err := c.ApplyPayment(amount); err != nil {
		return err
	}
	c.Touch(ctx)
	return p.ChargeRepo.UpdateBalance(ctx, c, expected)
}
