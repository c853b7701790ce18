package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/ispledger/internal/api/dto"
	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/payment"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/idempotency"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const allocationRetryInitialInterval = 20 * time.Millisecond

// PaymentAllocatorService records client payments and spreads them over what the client owes
type PaymentAllocatorService interface {
	// Allocate records a payment and applies it to the client's outstanding charges, oldest due
	// date first. Money left over becomes client credit. Nothing is written if any step fails.
	Allocate(ctx context.Context, req *dto.AllocatePaymentRequest) (*dto.AllocationResponse, error)
	// CancelPayment reverts every allocation of the payment and voids the credit it created
	CancelPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	GetPaymentByReceipt(ctx context.Context, receiptNumber string) (*payment.Payment, error)
}

type paymentAllocatorService struct {
	ServiceParams
}

func NewPaymentAllocatorService(params ServiceParams) PaymentAllocatorService {
	return &paymentAllocatorService{
		ServiceParams: params,
	}
}

func (s *paymentAllocatorService) Allocate(ctx context.Context, req *dto.AllocatePaymentRequest) (resp *dto.AllocationResponse, err error) {
	defer func(start time.Time) { s.Metrics.ObserveOperation("allocate_payment", start, err) }(time.Now())

	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := s.idempotencyKey(req)
	if key != nil {
		resp, err := s.replay(ctx, *key)
		if err != nil || resp != nil {
			return resp, err
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = allocationRetryInitialInterval
	eb.MaxElapsedTime = s.Config.Ledger.AllocationRetryMaxElapsed
	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.Config.Ledger.AllocationMaxRetries), ctx)

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		r, err := s.allocateOnce(ctx, req, key)
		if err == nil {
			resp = r
			return nil
		}
		if ierr.IsRetryable(err) {
			s.Logger.Infow("allocation lost a race, retrying",
				"client_id", req.ClientID,
				"attempt", attempt,
				"error", err,
			)
			s.Metrics.IncrAllocationConflict("retried")
			return err
		}
		return backoff.Permanent(err)
	}, b)
	if err != nil {
		switch {
		case key != nil && ierr.IsAlreadyExists(err):
			// a concurrent delivery of the same payment committed first
			return s.replay(ctx, *key)
		case ierr.IsVersionConflict(err):
			s.Metrics.IncrAllocationConflict("exhausted")
			return nil, ierr.WithError(err).
				WithHintf("Payments for client %s are being recorded concurrently, please retry", req.ClientID).
				WithReportableDetails(map[string]any{
					"client_id": req.ClientID,
					"attempts":  attempt,
				}).
				Mark(ierr.ErrVersionConflict)
		}
		return nil, err
	}

	s.Logger.Infow("allocated payment",
		"payment_id", resp.Payment.ID,
		"receipt_number", resp.ReceiptNumber,
		"client_id", req.ClientID,
		"total_amount", resp.Payment.TotalAmount,
		"charges", len(resp.Allocations),
		"credit_created", resp.CreditCreated,
	)
	s.Metrics.RecordAllocation(resp.Payment.PaymentMethod.String(), resp.TotalApplied(), resp.CreditCreated)
	s.publish(ctx, types.EventPaymentAllocated, req.ClientID, resp)
	if resp.CreditCreated.IsPositive() {
		s.publish(ctx, types.EventCreditRecorded, req.ClientID, map[string]interface{}{
			"origin_payment_id": resp.Payment.ID,
			"amount":            resp.CreditCreated,
		})
	}
	return resp, nil
}

// allocateOnce runs one allocation attempt in its own transaction
func (s *paymentAllocatorService) allocateOnce(ctx context.Context, req *dto.AllocatePaymentRequest, key *string) (*dto.AllocationResponse, error) {
	paidAt := time.Now().UTC()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	var resp *dto.AllocationResponse
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ChargeRepo.LockClient(ctx, req.ClientID); err != nil {
			return err
		}

		receipt, err := s.PaymentRepo.NextReceiptNumber(ctx)
		if err != nil {
			return err
		}

		p := payment.NewPayment(ctx, req.ClientID, receipt, req.Amount, req.PaymentMethod, req.Reference, key, paidAt)
		if err := s.PaymentRepo.Create(ctx, p); err != nil {
			return err
		}

		outstanding, err := s.ChargeRepo.ListOutstanding(ctx, req.ClientID)
		if err != nil {
			return err
		}
		if len(outstanding) == 0 {
			subs, err := s.SubRepo.ListByClient(ctx, req.ClientID)
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				s.Logger.Warnw("client has no billable history, payment becomes credit",
					"client_id", req.ClientID,
					"receipt_number", receipt,
				)
			}
		}

		remaining := p.TotalAmount
		lines := make([]dto.AllocationLine, 0, len(outstanding))
		for _, o := range outstanding {
			if !remaining.IsPositive() {
				break
			}

			c, err := s.ChargeRepo.GetForUpdate(ctx, o.ID)
			if err != nil {
				return err
			}
			if !c.IsOutstanding() {
				continue
			}

			toApply := decimal.Min(remaining, c.Balance)
			a := payment.NewAllocation(ctx, p.ID, c.ID, toApply)
			if err := s.PaymentRepo.CreateAllocation(ctx, a); err != nil {
				return err
			}
			if err := s.applyToCharge(ctx, c, toApply); err != nil {
				return err
			}

			p.Allocations = append(p.Allocations, a)
			lines = append(lines, dto.AllocationLine{
				ChargeID:      c.ID,
				Concept:       c.Concept,
				AmountApplied: toApply,
				Balance:       c.Balance,
				ChargeState:   c.ChargeState,
			})
			remaining = remaining.Sub(toApply)
		}

		creditCreated := decimal.Zero
		if remaining.IsPositive() {
			if _, err := s.recordCredit(ctx, req.ClientID, remaining, p.ID); err != nil {
				return err
			}
			creditCreated = remaining
		}

		if !p.AllocatedAmount().Add(creditCreated).Equal(p.TotalAmount) {
			return ierr.NewError("payment does not balance").
				WithHint("Allocated amount and credit must add up to the payment").
				WithReportableDetails(map[string]any{
					"payment_id":     p.ID,
					"total_amount":   p.TotalAmount.String(),
					"allocated":      p.AllocatedAmount().String(),
					"credit_created": creditCreated.String(),
				}).
				Mark(ierr.ErrInvariantViolation)
		}

		resp = &dto.AllocationResponse{
			Payment:       p,
			ReceiptNumber: p.ReceiptNumber,
			Allocations:   lines,
			CreditCreated: creditCreated,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// idempotencyKey returns the explicit key, or one derived from the payment when it carries a
// reference. Cash payments without a reference are never deduplicated.
func (s *paymentAllocatorService) idempotencyKey(req *dto.AllocatePaymentRequest) *string {
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		return req.IdempotencyKey
	}
	if req.Reference == nil || *req.Reference == "" {
		return nil
	}
	key := s.Idempotency.GenerateKey(idempotency.ScopePayment, map[string]interface{}{
		"client_id":      req.ClientID,
		"amount":         req.Amount.StringFixed(2),
		"payment_method": req.PaymentMethod,
		"reference":      *req.Reference,
	})
	return &key
}

// replay rebuilds the receipt of the payment recorded under key, nil when there is none
func (s *paymentAllocatorService) replay(ctx context.Context, key string) (*dto.AllocationResponse, error) {
	p, err := s.PaymentRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	charges, err := s.ChargeRepo.ListByIDs(ctx, lo.Map(p.Allocations, func(a *payment.Allocation, _ int) string {
		return a.ChargeID
	}))
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(charges, func(c *charge.Charge) string { return c.ID })

	lines := make([]dto.AllocationLine, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		line := dto.AllocationLine{ChargeID: a.ChargeID, AmountApplied: a.AmountApplied}
		if c, ok := byID[a.ChargeID]; ok {
			line.Concept = c.Concept
			line.Balance = c.Balance
			line.ChargeState = c.ChargeState
		}
		lines = append(lines, line)
	}

	creditCreated := decimal.Zero
	cr, err := s.CreditRepo.GetByOriginPayment(ctx, p.ID)
	switch {
	case err == nil:
		creditCreated = cr.OriginalAmount
	case !ierr.IsNotFound(err):
		return nil, err
	}

	s.Logger.Infow("payment already recorded, returning original receipt",
		"payment_id", p.ID,
		"receipt_number", p.ReceiptNumber,
		"client_id", p.ClientID,
	)
	return &dto.AllocationResponse{
		Payment:       p,
		ReceiptNumber: p.ReceiptNumber,
		Allocations:   lines,
		CreditCreated: creditCreated,
		Replayed:      true,
	}, nil
}

func (s *paymentAllocatorService) CancelPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	var cancelled *payment.Payment
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PaymentRepo.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := s.ChargeRepo.LockClient(ctx, p.ClientID); err != nil {
			return err
		}
		// re-read under the client lock
		p, err = s.PaymentRepo.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := p.Cancel(time.Now().UTC()); err != nil {
			return err
		}

		for _, a := range p.Allocations {
			c, err := s.ChargeRepo.GetForUpdate(ctx, a.ChargeID)
			if err != nil {
				return err
			}
			expected := c.AmountPaid
			if err := c.RevertPayment(a.AmountApplied); err != nil {
				return err
			}
			c.Touch(ctx)
			if err := s.ChargeRepo.UpdateBalance(ctx, c, expected); err != nil {
				return err
			}
		}

		cr, err := s.CreditRepo.GetByOriginPayment(ctx, p.ID)
		switch {
		case err == nil:
			cr.Void()
			cr.Touch(ctx)
			if err := s.CreditRepo.Update(ctx, cr); err != nil {
				return err
			}
		case !ierr.IsNotFound(err):
			return err
		}

		p.Touch(ctx)
		if err := s.PaymentRepo.MarkCancelled(ctx, p); err != nil {
			return err
		}
		cancelled = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled payment",
		"payment_id", cancelled.ID,
		"receipt_number", cancelled.ReceiptNumber,
		"client_id", cancelled.ClientID,
		"reverted_allocations", len(cancelled.Allocations),
	)
	s.Metrics.IncrPaymentCancelled()
	s.publish(ctx, types.EventPaymentCancelled, cancelled.ClientID, cancelled)
	return cancelled, nil
}

func (s *paymentAllocatorService) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	if id == "" {
		return nil, ierr.NewError("payment_id is required").
			WithHint("Payment ID is required").
			Mark(ierr.ErrValidation)
	}
	return s.PaymentRepo.Get(ctx, id)
}

func (s *paymentAllocatorService) GetPaymentByReceipt(ctx context.Context, receiptNumber string) (*payment.Payment, error) {
	if receiptNumber == "" {
		return nil, ierr.NewError("receipt_number is required").
			WithHint("Receipt number is required").
			Mark(ierr.ErrValidation)
	}
	return s.PaymentRepo.GetByReceiptNumber(ctx, receiptNumber)
}
