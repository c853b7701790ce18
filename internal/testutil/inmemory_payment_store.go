package testutil

import (
	"context"
	"sync/atomic"

	"github.com/flexprice/ispledger/internal/domain/payment"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
)

// InMemoryPaymentStore implements payment.Repository. The receipt sequence survives rollbacks,
// like a database sequence.
type InMemoryPaymentStore struct {
	payments    *InMemoryStore[*payment.Payment]
	allocations *InMemoryStore[*payment.Allocation]
	seq         atomic.Int64
}

var _ payment.Repository = (*InMemoryPaymentStore)(nil)

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		payments: NewInMemoryStore(func(p *payment.Payment) *payment.Payment {
			cp := *p
			cp.Allocations = nil
			return &cp
		}),
		allocations: NewInMemoryStore(func(a *payment.Allocation) *payment.Allocation {
			cp := *a
			return &cp
		}),
	}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	dup := s.payments.List(ctx, func(existing *payment.Payment) bool {
		if existing.ReceiptNumber == p.ReceiptNumber {
			return true
		}
		return p.IdempotencyKey != nil && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *p.IdempotencyKey
	}, nil)
	if len(dup) > 0 {
		return ierr.NewError("duplicate payment").
			WithHint("A payment with this idempotency key was already recorded").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.payments.Create(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.getBy(ctx, func(p *payment.Payment) bool { return p.ID == id })
}

func (s *InMemoryPaymentStore) GetByReceiptNumber(ctx context.Context, receiptNumber string) (*payment.Payment, error) {
	return s.getBy(ctx, func(p *payment.Payment) bool { return p.ReceiptNumber == receiptNumber })
}

func (s *InMemoryPaymentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	return s.getBy(ctx, func(p *payment.Payment) bool { return p.IdempotencyKey != nil && *p.IdempotencyKey == key })
}

func (s *InMemoryPaymentStore) getBy(ctx context.Context, match func(*payment.Payment) bool) (*payment.Payment, error) {
	found := s.payments.List(ctx, match, nil)
	if len(found) == 0 {
		return nil, ierr.NewError("payment not found").
			Mark(ierr.ErrNotFound)
	}
	p := found[0]
	allocations, err := s.ListAllocations(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Allocations = allocations
	return p, nil
}

func (s *InMemoryPaymentStore) NextReceiptNumber(_ context.Context) (string, error) {
	return types.FormatReceiptNumber(s.seq.Add(1)), nil
}

func (s *InMemoryPaymentStore) MarkCancelled(ctx context.Context, p *payment.Payment) error {
	stored, err := s.payments.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if stored.PaymentState != types.PaymentStateApplied {
		return ierr.NewError("payment not in applied state").
			Mark(ierr.ErrVersionConflict)
	}
	return s.payments.Update(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) CreateAllocation(ctx context.Context, a *payment.Allocation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	dup := s.allocations.List(ctx, func(existing *payment.Allocation) bool {
		return existing.PaymentID == a.PaymentID && existing.ChargeID == a.ChargeID
	}, nil)
	if len(dup) > 0 {
		return ierr.NewError("duplicate allocation").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.allocations.Create(ctx, a.ID, a)
}

func (s *InMemoryPaymentStore) ListAllocations(ctx context.Context, paymentID string) ([]*payment.Allocation, error) {
	return s.allocations.List(ctx, func(a *payment.Allocation) bool {
		return a.PaymentID == paymentID
	}, allocationOrder), nil
}

func (s *InMemoryPaymentStore) ListAllocationsByCharge(ctx context.Context, chargeID string) ([]*payment.Allocation, error) {
	return s.allocations.List(ctx, func(a *payment.Allocation) bool {
		return a.ChargeID == chargeID
	}, allocationOrder), nil
}

func allocationOrder(a, b *payment.Allocation) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Count returns the number of stored payments
func (s *InMemoryPaymentStore) Count(ctx context.Context) int {
	return len(s.payments.List(ctx, nil, nil))
}

// Snapshot restores payments and allocations but never the receipt sequence
func (s *InMemoryPaymentStore) Snapshot() func() {
	restorePayments := s.payments.Snapshot()
	restoreAllocations := s.allocations.Snapshot()
	return func() {
		restorePayments()
		restoreAllocations()
	}
}

func (s *InMemoryPaymentStore) Clear() {
	s.payments.Clear()
	s.allocations.Clear()
}
