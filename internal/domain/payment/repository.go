package payment

import (
	"context"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Payment operations
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByReceiptNumber(ctx context.Context, receiptNumber string) (*Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	// NextReceiptNumber draws the next receipt number; numbers of rolled back payments are not reused
	NextReceiptNumber(ctx context.Context) (string, error)
	MarkCancelled(ctx context.Context, p *Payment) error

	// Allocation operations
	CreateAllocation(ctx context.Context, a *Allocation) error
	ListAllocations(ctx context.Context, paymentID string) ([]*Allocation, error)
	ListAllocationsByCharge(ctx context.Context, chargeID string) ([]*Allocation, error)
}
