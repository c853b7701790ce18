package payment

import (
	"context"
	"time"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Payment is one money receipt from a client
type Payment struct {
	// Unique identifier for this payment
	ID       string `db:"id" json:"id"`
	ClientID string `db:"client_id" json:"client_id"`
	// ReceiptNumber is unique and increasing, ex REC-000042
	ReceiptNumber string              `db:"receipt_number" json:"receipt_number"`
	TotalAmount   decimal.Decimal     `db:"total_amount" json:"total_amount"`
	PaymentMethod types.PaymentMethod `db:"payment_method" json:"payment_method"`
	// Reference given by the cashier or the bank, optional
	Reference *string `db:"reference" json:"reference,omitempty"`
	// IdempotencyKey makes a redelivered payment return the original receipt, optional
	IdempotencyKey *string            `db:"idempotency_key" json:"idempotency_key,omitempty"`
	PaidAt         time.Time          `db:"paid_at" json:"paid_at"`
	PaymentState   types.PaymentState `db:"payment_state" json:"payment_state"`
	CancelledAt    *time.Time         `db:"cancelled_at" json:"cancelled_at,omitempty"`
	// Allocations are loaded on lookups, never persisted through the payment row
	Allocations []*Allocation `db:"-" json:"allocations,omitempty"`

	types.BaseModel
}

// Allocation is the portion of one payment applied to one charge
type Allocation struct {
	ID            string          `db:"id" json:"id"`
	PaymentID     string          `db:"payment_id" json:"payment_id"`
	ChargeID      string          `db:"charge_id" json:"charge_id"`
	AmountApplied decimal.Decimal `db:"amount_applied" json:"amount_applied"`

	types.BaseModel
}

// NewPayment builds an applied payment stamped from the context
func NewPayment(ctx context.Context, clientID, receiptNumber string, total decimal.Decimal, method types.PaymentMethod,
	reference, idempotencyKey *string, paidAt time.Time) *Payment {
	return &Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		ClientID:       clientID,
		ReceiptNumber:  receiptNumber,
		TotalAmount:    total,
		PaymentMethod:  method,
		Reference:      reference,
		IdempotencyKey: idempotencyKey,
		PaidAt:         paidAt.UTC(),
		PaymentState:   types.PaymentStateApplied,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

// NewAllocation links amount of payment p to a charge
func NewAllocation(ctx context.Context, paymentID, chargeID string, amount decimal.Decimal) *Allocation {
	return &Allocation{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_ALLOCATION),
		PaymentID:     paymentID,
		ChargeID:      chargeID,
		AmountApplied: amount,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if !p.TotalAmount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Payment amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"total_amount": p.TotalAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if p.ClientID == "" {
		return ierr.NewError("client_id is required").
			WithHint("A payment must reference a client").
			Mark(ierr.ErrValidation)
	}
	if err := p.PaymentMethod.Validate(); err != nil {
		return err
	}
	if err := p.PaymentState.Validate(); err != nil {
		return err
	}
	if p.ReceiptNumber == "" {
		return ierr.NewError("receipt_number is required").
			WithHint("A payment must carry its receipt number").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Validate validates the allocation
func (a *Allocation) Validate() error {
	if !a.AmountApplied.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Allocated amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if a.PaymentID == "" || a.ChargeID == "" {
		return ierr.NewError("payment_id and charge_id are required").
			WithHint("An allocation must reference a payment and a charge").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (p *Payment) IsCancelled() bool {
	return p.PaymentState == types.PaymentStateCancelled
}

// AllocatedAmount sums the loaded allocations
func (p *Payment) AllocatedAmount() decimal.Decimal {
	return lo.Reduce(p.Allocations, func(acc decimal.Decimal, a *Allocation, _ int) decimal.Decimal {
		return acc.Add(a.AmountApplied)
	}, decimal.Zero)
}

// Cancel marks the payment cancelled, a second cancellation is rejected
func (p *Payment) Cancel(at time.Time) error {
	if p.IsCancelled() {
		return ierr.NewError("payment already cancelled").
			WithHintf("Payment %s was already cancelled", p.ReceiptNumber).
			WithReportableDetails(map[string]any{
				"payment_id":     p.ID,
				"receipt_number": p.ReceiptNumber,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	p.PaymentState = types.PaymentStateCancelled
	p.CancelledAt = &at
	return nil
}
