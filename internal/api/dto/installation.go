package dto

import (
	"time"

	"github.com/flexprice/ispledger/internal/domain/charge"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/validator"
	"github.com/shopspring/decimal"
)

// CompleteInstallationRequest is sent once a subscription's service is installed
type CompleteInstallationRequest struct {
	SubscriptionID string    `json:"subscription_id" validate:"required"`
	InstalledAt    time.Time `json:"installed_at" validate:"required"`
	// InstallationFee is charged when greater than zero
	InstallationFee decimal.Decimal `json:"installation_fee" swaggertype:"string"`
	// Concept of the installation charge, a default is used when empty
	Concept string `json:"concept,omitempty" validate:"max=500"`
}

func (r *CompleteInstallationRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.InstallationFee.IsNegative() {
		return ierr.NewError("invalid installation fee").
			WithHint("Installation fee cannot be negative").
			WithReportableDetails(map[string]any{
				"installation_fee": r.InstallationFee.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CompleteInstallationResponse holds the charges created, either may be nil
type CompleteInstallationResponse struct {
	SubscriptionID     string         `json:"subscription_id"`
	InstallationCharge *charge.Charge `json:"installation_charge,omitempty"`
	ProrationCharge    *charge.Charge `json:"proration_charge,omitempty"`
}
