package dto

import (
	"time"

	"github.com/flexprice/ispledger/internal/domain/payment"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/flexprice/ispledger/internal/validator"
	"github.com/shopspring/decimal"
)

// AllocatePaymentRequest records money received from a client
type AllocatePaymentRequest struct {
	ClientID      string              `json:"client_id" validate:"required"`
	Amount        decimal.Decimal     `json:"amount" swaggertype:"string"`
	PaymentMethod types.PaymentMethod `json:"payment_method" validate:"required"`
	Reference     *string             `json:"reference,omitempty" validate:"omitempty,max=100"`
	// IdempotencyKey is optional; when empty and a reference is given one is derived from the payment
	IdempotencyKey *string `json:"idempotency_key,omitempty" validate:"omitempty,max=100"`
	// PaidAt defaults to now
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

func (r *AllocatePaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.PaymentMethod.Validate(); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Payment amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return ierr.NewError("invalid amount precision").
			WithHint("Payment amount cannot have more than 2 decimals").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AllocationLine is the part of a payment applied to one charge and the charge's balance afterwards
type AllocationLine struct {
	ChargeID      string            `json:"charge_id"`
	Concept       string            `json:"concept"`
	AmountApplied decimal.Decimal   `json:"amount_applied" swaggertype:"string"`
	Balance       decimal.Decimal   `json:"balance" swaggertype:"string"`
	ChargeState   types.ChargeState `json:"charge_state"`
}

// AllocationResponse is the receipt of an allocated payment
type AllocationResponse struct {
	Payment       *payment.Payment `json:"payment"`
	ReceiptNumber string           `json:"receipt_number"`
	Allocations   []AllocationLine `json:"allocations"`
	// CreditCreated is zero when the payment was fully applied
	CreditCreated decimal.Decimal `json:"credit_created" swaggertype:"string"`
	// Replayed is set when the idempotency key matched an earlier payment and nothing new was allocated
	Replayed bool `json:"replayed"`
}

// TotalApplied sums the amounts applied to charges
func (r *AllocationResponse) TotalApplied() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Allocations {
		total = total.Add(l.AmountApplied)
	}
	return total
}
