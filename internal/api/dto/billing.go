package dto

import (
	"github.com/flexprice/ispledger/internal/types"
	"github.com/flexprice/ispledger/internal/validator"
)

// PeriodRolloverRequest asks for the recurring charges of a billing period
type PeriodRolloverRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=9999"`
}

func (r *PeriodRolloverRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *PeriodRolloverRequest) Period() types.BillingPeriod {
	return types.BillingPeriod{Month: r.Month, Year: r.Year}
}

// BillingRunFailure names a subscription whose charge could not be generated
type BillingRunFailure struct {
	SubscriptionID string `json:"subscription_id"`
	Error          string `json:"error"`
}

// BillingRunResponse summarises one billing run; every subscription lands in exactly one bucket
type BillingRunResponse struct {
	RunID     string              `json:"run_id"`
	Period    string              `json:"period"`
	Created   int                 `json:"created"`
	Skipped   int                 `json:"skipped"`
	Failed    int                 `json:"failed"`
	ChargeIDs []string            `json:"charge_ids"`
	Failures  []BillingRunFailure `json:"failures,omitempty"`
}
