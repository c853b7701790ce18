package types

import (
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/samber/lo"
)

// PaymentMethod is how the client paid at the counter or remotely
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "efectivo"
	PaymentMethodTransfer PaymentMethod = "transferencia"
	PaymentMethodCard     PaymentMethod = "tarjeta"
	PaymentMethodDeposit  PaymentMethod = "deposito"
)

var PaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodTransfer,
	PaymentMethodCard,
	PaymentMethodDeposit,
}

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Validate() error {
	if !lo.Contains(PaymentMethods, m) {
		return ierr.NewError("invalid payment method").
			WithHint("Please provide a valid payment method").
			WithReportableDetails(map[string]any{
				"payment_method": m,
				"allowed":        PaymentMethods,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentState of a recorded payment
type PaymentState string

const (
	PaymentStateApplied   PaymentState = "applied"
	PaymentStateCancelled PaymentState = "cancelled"
)

func (s PaymentState) String() string {
	return string(s)
}

func (s PaymentState) Validate() error {
	allowed := []PaymentState{
		PaymentStateApplied,
		PaymentStateCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment state").
			WithHint("Please provide a valid payment state").
			WithReportableDetails(map[string]any{
				"payment_state": s,
				"allowed":       allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
