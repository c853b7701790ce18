package charge

import (
	"context"

	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for charge persistence
type Repository interface {
	// Create fails with ErrAlreadyExists when a live charge occupies the same (subscription, type, period)
	Create(ctx context.Context, c *Charge) error
	Get(ctx context.Context, id string) (*Charge, error)
	// GetForUpdate reads the charge and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, id string) (*Charge, error)
	// FindPeriodCharge returns the live charge of a period slot, ErrNotFound when there is none
	FindPeriodCharge(ctx context.Context, subscriptionID string, chargeType types.ChargeType, period types.BillingPeriod) (*Charge, error)
	// ListOutstanding returns non-cancelled charges of the client with balance > 0, due_date ASC, id ASC
	ListOutstanding(ctx context.Context, clientID string) ([]*Charge, error)
	ListByIDs(ctx context.Context, ids []string) ([]*Charge, error)
	// ListBySubscription returns the non-cancelled charges of one type billed to a subscription
	ListBySubscription(ctx context.Context, subscriptionID string, chargeType types.ChargeType) ([]*Charge, error)
	// UpdateBalance persists amount paid, balance and state, guarded on the amount paid read before the change.
	// It fails with ErrVersionConflict when the stored amount paid moved.
	UpdateBalance(ctx context.Context, c *Charge, expectedAmountPaid decimal.Decimal) error
	Cancel(ctx context.Context, c *Charge) error
	// LockClient takes the transaction scoped lock serialising balance changes of one client
	LockClient(ctx context.Context, clientID string) error
}
