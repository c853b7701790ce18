package credit

import (
	"context"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// CreditBalance is money a client paid beyond everything outstanding at allocation time
type CreditBalance struct {
	ID              string          `db:"id" json:"id"`
	ClientID        string          `db:"client_id" json:"client_id"`
	OriginalAmount  decimal.Decimal `db:"original_amount" json:"original_amount"`
	AvailableAmount decimal.Decimal `db:"available_amount" json:"available_amount"`
	OriginPaymentID string          `db:"origin_payment_id" json:"origin_payment_id"`
	Active          bool            `db:"active" json:"active"`

	types.BaseModel
}

func NewCreditBalance(ctx context.Context, clientID string, amount decimal.Decimal, originPaymentID string) *CreditBalance {
	return &CreditBalance{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CREDIT_BALANCE),
		ClientID:        clientID,
		OriginalAmount:  amount,
		AvailableAmount: amount,
		OriginPaymentID: originPaymentID,
		Active:          true,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}

func (c *CreditBalance) Validate() error {
	if !c.OriginalAmount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Credit amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"amount": c.OriginalAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if c.ClientID == "" || c.OriginPaymentID == "" {
		return ierr.NewError("client_id and origin_payment_id are required").
			WithHint("A credit must reference its client and the payment that created it").
			Mark(ierr.ErrValidation)
	}
	if c.AvailableAmount.IsNegative() || c.AvailableAmount.GreaterThan(c.OriginalAmount) {
		return ierr.NewError("available credit out of bounds").
			WithHint("Available credit must stay between 0 and the original amount").
			WithReportableDetails(map[string]any{
				"original_amount":  c.OriginalAmount.String(),
				"available_amount": c.AvailableAmount.String(),
			}).
			Mark(ierr.ErrInvariantViolation)
	}
	return nil
}

// Void zeroes and deactivates the credit, used when its origin payment is cancelled
func (c *CreditBalance) Void() {
	c.AvailableAmount = decimal.Zero
	c.Active = false
}
