package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/ispledger/internal/domain/charge"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InMemoryChargeStore implements charge.Repository with the constraints of the charges table
type InMemoryChargeStore struct {
	*InMemoryStore[*charge.Charge]

	// createMu makes the period uniqueness check and the insert one step, like the unique index
	createMu sync.Mutex

	conflictMu      sync.Mutex
	updateConflicts int
	lockedClients   []string
}

var _ charge.Repository = (*InMemoryChargeStore)(nil)

func NewInMemoryChargeStore() *InMemoryChargeStore {
	return &InMemoryChargeStore{
		InMemoryStore: NewInMemoryStore(func(c *charge.Charge) *charge.Charge {
			cp := *c
			return &cp
		}),
	}
}

// SetUpdateConflicts makes the next n balance updates fail as if another transaction won the race
func (s *InMemoryChargeStore) SetUpdateConflicts(n int) {
	s.conflictMu.Lock()
	defer s.conflictMu.Unlock()
	s.updateConflicts = n
}

// LockedClients lists the clients locked so far, in order
func (s *InMemoryChargeStore) LockedClients() []string {
	s.conflictMu.Lock()
	defer s.conflictMu.Unlock()
	return append([]string(nil), s.lockedClients...)
}

func (s *InMemoryChargeStore) Create(ctx context.Context, c *charge.Charge) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if key := c.PeriodKey(); key != "" {
		taken := s.List(ctx, func(existing *charge.Charge) bool {
			return existing.PeriodKey() == key && !existing.IsCancelled() && existing.Status == types.StatusPublished
		}, nil)
		if len(taken) > 0 {
			return ierr.NewError("duplicate period charge").
				WithHintf("A %s charge for %s already exists", c.ChargeType, c.Period.String()).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryChargeStore) Get(ctx context.Context, id string) (*charge.Charge, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Charge %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return c, nil
}

func (s *InMemoryChargeStore) GetForUpdate(ctx context.Context, id string) (*charge.Charge, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryChargeStore) FindPeriodCharge(ctx context.Context, subscriptionID string, chargeType types.ChargeType, period types.BillingPeriod) (*charge.Charge, error) {
	found := s.List(ctx, func(c *charge.Charge) bool {
		return c.SubscriptionID == subscriptionID && c.ChargeType == chargeType &&
			c.Period != nil && *c.Period == period && !c.IsCancelled()
	}, nil)
	if len(found) == 0 {
		return nil, ierr.NewError("period charge not found").
			Mark(ierr.ErrNotFound)
	}
	return found[0], nil
}

func (s *InMemoryChargeStore) ListOutstanding(ctx context.Context, clientID string) ([]*charge.Charge, error) {
	return s.List(ctx, func(c *charge.Charge) bool {
		return c.ClientID == clientID && c.IsOutstanding()
	}, func(a, b *charge.Charge) bool {
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	}), nil
}

func (s *InMemoryChargeStore) ListByIDs(ctx context.Context, ids []string) ([]*charge.Charge, error) {
	return s.List(ctx, func(c *charge.Charge) bool {
		return lo.Contains(ids, c.ID)
	}, nil), nil
}

func (s *InMemoryChargeStore) ListBySubscription(ctx context.Context, subscriptionID string, chargeType types.ChargeType) ([]*charge.Charge, error) {
	return s.List(ctx, func(c *charge.Charge) bool {
		return c.SubscriptionID == subscriptionID && c.ChargeType == chargeType && !c.IsCancelled()
	}, func(a, b *charge.Charge) bool {
		return a.ID < b.ID
	}), nil
}

func (s *InMemoryChargeStore) UpdateBalance(ctx context.Context, c *charge.Charge, expectedAmountPaid decimal.Decimal) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.conflictMu.Lock()
	if s.updateConflicts > 0 {
		s.updateConflicts--
		s.conflictMu.Unlock()
		return ierr.NewError("update charge balance: no row matched").
			Mark(ierr.ErrVersionConflict)
	}
	s.conflictMu.Unlock()

	stored, err := s.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if !stored.AmountPaid.Equal(expectedAmountPaid) {
		return ierr.NewError("update charge balance: no row matched").
			Mark(ierr.ErrVersionConflict)
	}
	return s.InMemoryStore.Update(ctx, c.ID, c)
}

func (s *InMemoryChargeStore) Cancel(ctx context.Context, c *charge.Charge) error {
	stored, err := s.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if stored.IsCancelled() {
		return ierr.NewError("cancel charge: no row matched").
			Mark(ierr.ErrVersionConflict)
	}
	return s.InMemoryStore.Update(ctx, c.ID, c)
}

func (s *InMemoryChargeStore) LockClient(ctx context.Context, clientID string) error {
	if !inMockTx(ctx) {
		return ierr.NewError("client lock requires a transaction").
			Mark(ierr.ErrSystem)
	}
	s.conflictMu.Lock()
	defer s.conflictMu.Unlock()
	s.lockedClients = append(s.lockedClients, clientID)
	return nil
}

// Clear removes all charges and pending conflicts
func (s *InMemoryChargeStore) Clear() {
	s.InMemoryStore.Clear()
	s.conflictMu.Lock()
	defer s.conflictMu.Unlock()
	s.updateConflicts = 0
	s.lockedClients = nil
}
