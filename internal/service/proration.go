package service

import (
	"context"
	"time"

	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/proration"
	"github.com/flexprice/ispledger/internal/domain/subscription"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
)

// ProrationService bills the partial month between an installation and the first cutoff
type ProrationService interface {
	// ComputeProration returns nil when the subscription owes no proration for installDate
	ComputeProration(ctx context.Context, subscriptionID string, installDate time.Time) (*proration.Result, error)
	// CreateProrationCharge returns nil when no proration applies or the period's proration already exists
	CreateProrationCharge(ctx context.Context, subscriptionID string, installDate time.Time) (*charge.Charge, error)
}

type prorationService struct {
	ServiceParams
}

func NewProrationService(params ServiceParams) ProrationService {
	return &prorationService{
		ServiceParams: params,
	}
}

func (s *prorationService) ComputeProration(ctx context.Context, subscriptionID string, installDate time.Time) (*proration.Result, error) {
	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.Calculator.Calculate(proration.Params{
		InstallDate:  installDate,
		MonthlyPrice: sub.MonthlyPrice,
		CutoffDay:    sub.CutoffDay,
	})
}

func (s *prorationService) CreateProrationCharge(ctx context.Context, subscriptionID string, installDate time.Time) (c *charge.Charge, err error) {
	defer func(start time.Time) { s.Metrics.ObserveOperation("create_proration_charge", start, err) }(time.Now())

	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	c, err = s.createProration(ctx, sub, installDate)
	if err != nil || c == nil {
		return nil, err
	}

	s.Metrics.IncrChargeCreated(c.ChargeType.String())
	s.publish(ctx, types.EventChargeCreated, c.ClientID, c)
	return c, nil
}

func (s *prorationService) getSubscription(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	if subscriptionID == "" {
		return nil, ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}
	return s.SubRepo.Get(ctx, subscriptionID)
}

// createProration inserts the proration charge of sub. It returns nil when the installation day
// is on or after the cutoff, when the amount rounds to zero, or when the period is already billed.
// It does not publish, callers do once their transaction committed.
func (p ServiceParams) createProration(ctx context.Context, sub *subscription.Subscription, installDate time.Time) (*charge.Charge, error) {
	result, err := p.Calculator.Calculate(proration.Params{
		InstallDate:  installDate,
		MonthlyPrice: sub.MonthlyPrice,
		CutoffDay:    sub.CutoffDay,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		p.Logger.Debugw("no proration due",
			"subscription_id", sub.ID,
			"install_date", installDate,
			"cutoff_day", sub.CutoffDay,
		)
		return nil, nil
	}
	if !result.Amount.IsPositive() {
		p.Logger.Infow("proration rounds to zero, skipping charge",
			"subscription_id", sub.ID,
			"days_to_bill", result.DaysToBill,
			"monthly_price", sub.MonthlyPrice,
		)
		return nil, nil
	}

	period := result.Period
	c := charge.NewCharge(ctx, sub.ClientID, sub.ID, types.ChargeTypeProration, result.Concept,
		result.Amount, installDate, result.DueDate, &period)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := p.insertCharge(ctx, c); err != nil {
		if ierr.IsAlreadyExists(err) {
			p.Logger.Infow("proration already billed",
				"subscription_id", sub.ID,
				"period", period.String(),
			)
			return nil, nil
		}
		return nil, err
	}

	p.Logger.Infow("created proration charge",
		"charge_id", c.ID,
		"subscription_id", sub.ID,
		"days_to_bill", result.DaysToBill,
		"days_in_month", result.DaysInMonth,
		"amount", c.Amount,
	)
	return c, nil
}
