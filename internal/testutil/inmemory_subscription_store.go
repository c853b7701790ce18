package testutil

import (
	"context"

	"github.com/flexprice/ispledger/internal/domain/subscription"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
)

// InMemorySubscriptionStore implements the read-only subscription.Repository; tests seed it with Put
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

var _ subscription.Repository = (*InMemorySubscriptionStore)(nil)

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore(func(s *subscription.Subscription) *subscription.Subscription {
			cp := *s
			return &cp
		}),
	}
}

// Put inserts or replaces a subscription
func (s *InMemorySubscriptionStore) Put(ctx context.Context, sub *subscription.Subscription) {
	if err := s.InMemoryStore.Update(ctx, sub.ID, sub); err != nil {
		_ = s.InMemoryStore.Create(ctx, sub.ID, sub)
	}
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Subscription %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

func (s *InMemorySubscriptionStore) ListByClient(ctx context.Context, clientID string) ([]*subscription.Subscription, error) {
	return s.List(ctx, func(sub *subscription.Subscription) bool {
		return sub.ClientID == clientID
	}, byID), nil
}

func (s *InMemorySubscriptionStore) ListBillable(ctx context.Context, period types.BillingPeriod) ([]*subscription.Subscription, error) {
	next := period.Next().Start()
	return s.List(ctx, func(sub *subscription.Subscription) bool {
		return sub.IsActive() && sub.InstalledAt != nil && sub.InstalledAt.Before(next)
	}, byID), nil
}

func byID(a, b *subscription.Subscription) bool {
	return a.ID < b.ID
}
