package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flexprice/ispledger/internal/api/dto"
	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/subscription"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/sourcegraph/conc/pool"
)

const (
	billingRunCreated = "created"
	billingRunSkipped = "skipped"
	billingRunFailed  = "failed"
)

// RecurringChargeService emits the monthly charge of each subscription once per billing period
type RecurringChargeService interface {
	// GenerateMonthlyCharge returns nil, nil when the period is already billed
	GenerateMonthlyCharge(ctx context.Context, subscriptionID string, month, year int) (*charge.Charge, error)
	// RunBillingPeriod generates the charge of every billable subscription. A subscription that fails
	// is reported in the response and does not stop the run.
	RunBillingPeriod(ctx context.Context, period types.BillingPeriod) (*dto.BillingRunResponse, error)
}

type recurringChargeService struct {
	ServiceParams
}

func NewRecurringChargeService(params ServiceParams) RecurringChargeService {
	return &recurringChargeService{
		ServiceParams: params,
	}
}

func (s *recurringChargeService) GenerateMonthlyCharge(ctx context.Context, subscriptionID string, month, year int) (*charge.Charge, error) {
	period, err := types.NewBillingPeriod(month, year)
	if err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsBillableIn(period) {
		return nil, ierr.NewError("subscription not billable").
			WithHintf("Subscription %s is not active or not installed by %s", sub.ID, period.String()).
			WithReportableDetails(map[string]any{
				"subscription_id":     sub.ID,
				"subscription_status": sub.SubscriptionStatus,
				"period":              period.String(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	c, err := s.generate(ctx, sub, period)
	if err != nil || c == nil {
		return nil, err
	}
	s.Metrics.IncrChargeCreated(c.ChargeType.String())
	s.publish(ctx, types.EventChargeCreated, c.ClientID, c)
	return c, nil
}

// generate inserts the recurring charge of sub for period, nil when the slot is taken
func (s *recurringChargeService) generate(ctx context.Context, sub *subscription.Subscription, period types.BillingPeriod) (*charge.Charge, error) {
	concept := fmt.Sprintf("Monthly service %s", period.String())
	c := charge.NewCharge(ctx, sub.ClientID, sub.ID, types.ChargeTypeRecurring, concept,
		sub.MonthlyPrice.Round(2), time.Now().UTC(), period.Day(sub.CutoffDay), &period)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.insertCharge(ctx, c); err != nil {
		if ierr.IsAlreadyExists(err) {
			s.Logger.Debugw("recurring charge already generated",
				"subscription_id", sub.ID,
				"period", period.String(),
			)
			return nil, nil
		}
		return nil, err
	}

	s.Logger.Infow("generated recurring charge",
		"charge_id", c.ID,
		"subscription_id", sub.ID,
		"period", period.String(),
		"amount", c.Amount,
		"due_date", c.DueDate,
	)
	return c, nil
}

func (s *recurringChargeService) RunBillingPeriod(ctx context.Context, period types.BillingPeriod) (resp *dto.BillingRunResponse, err error) {
	defer func(start time.Time) { s.Metrics.ObserveOperation("billing_run", start, err) }(time.Now())

	if err := period.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.ListBillable(ctx, period)
	if err != nil {
		return nil, err
	}

	resp = &dto.BillingRunResponse{
		RunID:     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_RUN),
		Period:    period.String(),
		ChargeIDs: []string{},
	}

	s.Logger.Infow("starting billing run",
		"run_id", resp.RunID,
		"period", resp.Period,
		"subscriptions", len(subs),
		"concurrency", s.Config.Ledger.BillingRunConcurrency,
	)

	var mu sync.Mutex
	record := func(result string, c *charge.Charge, sub *subscription.Subscription, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch result {
		case billingRunCreated:
			resp.Created++
			resp.ChargeIDs = append(resp.ChargeIDs, c.ID)
		case billingRunSkipped:
			resp.Skipped++
		case billingRunFailed:
			resp.Failed++
			resp.Failures = append(resp.Failures, dto.BillingRunFailure{
				SubscriptionID: sub.ID,
				Error:          ierr.DisplayMessage(err),
			})
		}
		s.Metrics.IncrBillingRun(result)
	}

	p := pool.New().WithMaxGoroutines(s.Config.Ledger.BillingRunConcurrency).WithContext(ctx)
	for _, sub := range subs {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				record(billingRunFailed, nil, sub, err)
				return nil
			}
			c, err := s.generate(ctx, sub, period)
			switch {
			case err != nil:
				s.Logger.Errorw("failed to generate recurring charge",
					"run_id", resp.RunID,
					"subscription_id", sub.ID,
					"error", err,
				)
				record(billingRunFailed, nil, sub, err)
			case c == nil:
				record(billingRunSkipped, nil, sub, nil)
			default:
				record(billingRunCreated, c, sub, nil)
				s.Metrics.IncrChargeCreated(c.ChargeType.String())
				s.publish(ctx, types.EventChargeCreated, c.ClientID, c)
			}
			return nil
		})
	}
	_ = p.Wait()

	s.Logger.Infow("finished billing run",
		"run_id", resp.RunID,
		"period", resp.Period,
		"created", resp.Created,
		"skipped", resp.Skipped,
		"failed", resp.Failed,
	)
	return resp, nil
}
