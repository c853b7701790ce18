package charge

import (
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// DeriveState is the single source of truth for a charge's persisted state.
// Cancelled wins over everything; otherwise the state follows how much has been paid.
func DeriveState(amount, amountPaid decimal.Decimal, cancelled bool) types.ChargeState {
	switch {
	case cancelled:
		return types.ChargeStateCancelled
	case amountPaid.GreaterThanOrEqual(amount):
		return types.ChargeStatePaid
	case amountPaid.IsPositive():
		return types.ChargeStatePartial
	default:
		return types.ChargeStatePending
	}
}
