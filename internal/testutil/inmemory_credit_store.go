package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/ispledger/internal/domain/credit"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/shopspring/decimal"
)

// InMemoryCreditStore implements credit.Repository
type InMemoryCreditStore struct {
	*InMemoryStore[*credit.CreditBalance]

	errMu     sync.Mutex
	createErr error
}

var _ credit.Repository = (*InMemoryCreditStore)(nil)

func NewInMemoryCreditStore() *InMemoryCreditStore {
	return &InMemoryCreditStore{
		InMemoryStore: NewInMemoryStore(func(c *credit.CreditBalance) *credit.CreditBalance {
			cp := *c
			return &cp
		}),
	}
}

// SetCreateError makes every Create fail with err until it is reset with nil
func (s *InMemoryCreditStore) SetCreateError(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.createErr = err
}

func (s *InMemoryCreditStore) Create(ctx context.Context, c *credit.CreditBalance) error {
	s.errMu.Lock()
	err := s.createErr
	s.errMu.Unlock()
	if err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		return err
	}
	dup := s.List(ctx, func(existing *credit.CreditBalance) bool {
		return existing.OriginPaymentID == c.OriginPaymentID
	}, nil)
	if len(dup) > 0 {
		return ierr.NewError("payment already created a credit").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryCreditStore) GetByOriginPayment(ctx context.Context, paymentID string) (*credit.CreditBalance, error) {
	found := s.List(ctx, func(c *credit.CreditBalance) bool {
		return c.OriginPaymentID == paymentID
	}, nil)
	if len(found) == 0 {
		return nil, ierr.NewError("credit balance not found").
			Mark(ierr.ErrNotFound)
	}
	return found[0], nil
}

func (s *InMemoryCreditStore) ListActiveByClient(ctx context.Context, clientID string) ([]*credit.CreditBalance, error) {
	return s.List(ctx, func(c *credit.CreditBalance) bool {
		return c.ClientID == clientID && c.Active
	}, func(a, b *credit.CreditBalance) bool {
		return a.ID < b.ID
	}), nil
}

func (s *InMemoryCreditStore) SumAvailable(ctx context.Context, clientID string) (decimal.Decimal, error) {
	credits, _ := s.ListActiveByClient(ctx, clientID)
	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.AvailableAmount)
	}
	return total, nil
}

func (s *InMemoryCreditStore) Update(ctx context.Context, c *credit.CreditBalance) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.InMemoryStore.Update(ctx, c.ID, c)
}

func (s *InMemoryCreditStore) Clear() {
	s.InMemoryStore.Clear()
	s.SetCreateError(nil)
}
