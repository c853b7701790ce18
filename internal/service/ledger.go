package service

import (
	"context"
	"time"

	"github.com/flexprice/ispledger/internal/api/dto"
	"github.com/flexprice/ispledger/internal/domain/charge"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ChargeLedgerService records what clients owe and how much of it has been paid
type ChargeLedgerService interface {
	CreateCharge(ctx context.Context, req *dto.CreateChargeRequest) (*charge.Charge, error)
	GetCharge(ctx context.Context, id string) (*charge.Charge, error)
	// ListOutstanding returns the client's unpaid charges oldest due date first
	ListOutstanding(ctx context.Context, clientID string) ([]*charge.Charge, error)
	// ApplyPayment applies amount to one charge. Paying more than the balance is rejected.
	ApplyPayment(ctx context.Context, chargeID string, amount decimal.Decimal) (*charge.Charge, error)
	CancelCharge(ctx context.Context, chargeID string) (*charge.Charge, error)
	// GetStatement lists the outstanding charges with overdue ones flagged as of asOf
	GetStatement(ctx context.Context, clientID string, asOf time.Time) (*dto.StatementResponse, error)
}

type chargeLedgerService struct {
	ServiceParams
}

func NewChargeLedgerService(params ServiceParams) ChargeLedgerService {
	return &chargeLedgerService{
		ServiceParams: params,
	}
}

func (s *chargeLedgerService) CreateCharge(ctx context.Context, req *dto.CreateChargeRequest) (c *charge.Charge, err error) {
	defer func(start time.Time) { s.Metrics.ObserveOperation("create_charge", start, err) }(time.Now())

	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription %s does not exist", req.SubscriptionID).
				Mark(ierr.ErrValidation)
		}
		return nil, err
	}

	c = req.ToCharge(ctx, sub.ClientID, time.Now().UTC())
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.insertCharge(ctx, c); err != nil {
		return nil, err
	}

	s.Logger.Infow("created charge",
		"charge_id", c.ID,
		"client_id", c.ClientID,
		"subscription_id", c.SubscriptionID,
		"charge_type", c.ChargeType,
		"amount", c.Amount,
	)
	s.Metrics.IncrChargeCreated(c.ChargeType.String())
	s.publish(ctx, types.EventChargeCreated, c.ClientID, c)
	return c, nil
}

func (s *chargeLedgerService) GetCharge(ctx context.Context, id string) (*charge.Charge, error) {
	if id == "" {
		return nil, ierr.NewError("charge_id is required").
			WithHint("Charge ID is required").
			Mark(ierr.ErrValidation)
	}
	return s.ChargeRepo.Get(ctx, id)
}

func (s *chargeLedgerService) ListOutstanding(ctx context.Context, clientID string) ([]*charge.Charge, error) {
	if clientID == "" {
		return nil, ierr.NewError("client_id is required").
			WithHint("Client ID is required").
			Mark(ierr.ErrValidation)
	}
	return s.ChargeRepo.ListOutstanding(ctx, clientID)
}

func (s *chargeLedgerService) ApplyPayment(ctx context.Context, chargeID string, amount decimal.Decimal) (*charge.Charge, error) {
	if !amount.IsPositive() {
		return nil, ierr.NewError("invalid amount").
			WithHint("Applied amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"charge_id": chargeID,
				"amount":    amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	var updated *charge.Charge
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.ChargeRepo.Get(ctx, chargeID)
		if err != nil {
			return err
		}
		if err := s.ChargeRepo.LockClient(ctx, c.ClientID); err != nil {
			return err
		}
		// re-read under the client lock
		c, err = s.ChargeRepo.GetForUpdate(ctx, chargeID)
		if err != nil {
			return err
		}
		if err := s.applyToCharge(ctx, c, amount); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *chargeLedgerService) CancelCharge(ctx context.Context, chargeID string) (*charge.Charge, error) {
	var cancelled *charge.Charge
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.ChargeRepo.Get(ctx, chargeID)
		if err != nil {
			return err
		}
		if err := s.ChargeRepo.LockClient(ctx, c.ClientID); err != nil {
			return err
		}
		c, err = s.ChargeRepo.GetForUpdate(ctx, chargeID)
		if err != nil {
			return err
		}
		if err := c.Cancel(time.Now().UTC()); err != nil {
			return err
		}
		c.Touch(ctx)
		if err := s.ChargeRepo.Cancel(ctx, c); err != nil {
			return err
		}
		cancelled = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled charge",
		"charge_id", cancelled.ID,
		"client_id", cancelled.ClientID,
		"amount_paid", cancelled.AmountPaid,
	)
	s.Metrics.IncrChargeCancelled()
	s.publish(ctx, types.EventChargeCancelled, cancelled.ClientID, cancelled)
	return cancelled, nil
}

func (s *chargeLedgerService) GetStatement(ctx context.Context, clientID string, asOf time.Time) (*dto.StatementResponse, error) {
	charges, err := s.ListOutstanding(ctx, clientID)
	if err != nil {
		return nil, err
	}
	available, err := s.CreditRepo.SumAvailable(ctx, clientID)
	if err != nil {
		return nil, err
	}

	resp := &dto.StatementResponse{
		ClientID:         clientID,
		AsOf:             types.DateOnly(asOf),
		Charges:          lo.Map(charges, func(c *charge.Charge, _ int) dto.StatementLine { return dto.NewStatementLine(c, asOf) }),
		TotalOutstanding: decimal.Zero,
		TotalOverdue:     decimal.Zero,
		AvailableCredit:  available,
	}
	for _, line := range resp.Charges {
		resp.TotalOutstanding = resp.TotalOutstanding.Add(line.Balance)
		if line.ChargeState == types.ChargeStateOverdue {
			resp.TotalOverdue = resp.TotalOverdue.Add(line.Balance)
		}
	}
	return resp, nil
}
