package credit

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for credit balance persistence
type Repository interface {
	Create(ctx context.Context, c *CreditBalance) error
	// GetByOriginPayment returns ErrNotFound when the payment created no credit
	GetByOriginPayment(ctx context.Context, paymentID string) (*CreditBalance, error)
	ListActiveByClient(ctx context.Context, clientID string) ([]*CreditBalance, error)
	// SumAvailable adds the available amount of the client's active credits
	SumAvailable(ctx context.Context, clientID string) (decimal.Decimal, error)
	Update(ctx context.Context, c *CreditBalance) error
}
