package dto

import (
	"context"
	"time"

	"github.com/flexprice/ispledger/internal/domain/charge"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/flexprice/ispledger/internal/validator"
	"github.com/shopspring/decimal"
)

// CreateChargeRequest registers a charge against a subscription
type CreateChargeRequest struct {
	SubscriptionID string           `json:"subscription_id" validate:"required"`
	ChargeType     types.ChargeType `json:"charge_type" validate:"required"`
	Concept        string           `json:"concept" validate:"required,max=500"`
	Amount         decimal.Decimal  `json:"amount" swaggertype:"string"`
	// IssueDate defaults to today
	IssueDate *time.Time `json:"issue_date,omitempty"`
	DueDate   time.Time  `json:"due_date" validate:"required"`
	// Period is required for recurring and proration charges
	Period *types.BillingPeriod `json:"period,omitempty"`
}

func (r *CreateChargeRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.ChargeType.Validate(); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Charge amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if r.Period != nil {
		if err := r.Period.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToCharge builds the charge for the client owning the subscription
func (r *CreateChargeRequest) ToCharge(ctx context.Context, clientID string, now time.Time) *charge.Charge {
	issueDate := now
	if r.IssueDate != nil {
		issueDate = *r.IssueDate
	}
	return charge.NewCharge(ctx, clientID, r.SubscriptionID, r.ChargeType, r.Concept,
		r.Amount.Round(2), issueDate, r.DueDate, r.Period)
}
