package subscription

import (
	"context"

	"github.com/flexprice/ispledger/internal/types"
)

// Repository is the read-only view of subscriptions the ledger needs
type Repository interface {
	Get(ctx context.Context, id string) (*Subscription, error)
	ListByClient(ctx context.Context, clientID string) ([]*Subscription, error)
	// ListBillable returns the subscriptions that owe a recurring charge for the period
	ListBillable(ctx context.Context, period types.BillingPeriod) ([]*Subscription, error)
}
