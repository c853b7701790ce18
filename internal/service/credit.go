package service

import (
	"context"

	"github.com/flexprice/ispledger/internal/domain/credit"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// CreditBalanceService keeps the money clients paid beyond what they owed.
// Credit is recorded and reported, never consumed against later charges.
type CreditBalanceService interface {
	RecordCredit(ctx context.Context, clientID string, amount decimal.Decimal, originPaymentID string) (*credit.CreditBalance, error)
	AvailableCredit(ctx context.Context, clientID string) (decimal.Decimal, error)
	ListActiveCredits(ctx context.Context, clientID string) ([]*credit.CreditBalance, error)
}

type creditBalanceService struct {
	ServiceParams
}

func NewCreditBalanceService(params ServiceParams) CreditBalanceService {
	return &creditBalanceService{
		ServiceParams: params,
	}
}

func (s *creditBalanceService) RecordCredit(ctx context.Context, clientID string, amount decimal.Decimal, originPaymentID string) (*credit.CreditBalance, error) {
	c, err := s.recordCredit(ctx, clientID, amount, originPaymentID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, types.EventCreditRecorded, c.ClientID, c)
	return c, nil
}

func (s *creditBalanceService) AvailableCredit(ctx context.Context, clientID string) (decimal.Decimal, error) {
	if clientID == "" {
		return decimal.Zero, ierr.NewError("client_id is required").
			WithHint("Client ID is required").
			Mark(ierr.ErrValidation)
	}
	return s.CreditRepo.SumAvailable(ctx, clientID)
}

func (s *creditBalanceService) ListActiveCredits(ctx context.Context, clientID string) ([]*credit.CreditBalance, error) {
	if clientID == "" {
		return nil, ierr.NewError("client_id is required").
			WithHint("Client ID is required").
			Mark(ierr.ErrValidation)
	}
	return s.CreditRepo.ListActiveByClient(ctx, clientID)
}

func (p ServiceParams) recordCredit(ctx context.Context, clientID string, amount decimal.Decimal, originPaymentID string) (*credit.CreditBalance, error) {
	c := credit.NewCreditBalance(ctx, clientID, amount, originPaymentID)
	if err := p.CreditRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	p.Logger.Infow("recorded client credit",
		"credit_id", c.ID,
		"client_id", clientID,
		"amount", amount,
		"origin_payment_id", originPaymentID,
	)
	return c, nil
}
