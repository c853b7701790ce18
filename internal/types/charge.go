package types

import (
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/samber/lo"
)

// ChargeType classifies what a charge bills for. Each value maps to one row of the charge_types catalog.
type ChargeType string

const (
	ChargeTypeInstallation ChargeType = "installation"
	ChargeTypeProration    ChargeType = "proration"
	ChargeTypeRecurring    ChargeType = "recurring"
	ChargeTypeReconnection ChargeType = "reconnection"
	ChargeTypeEquipment    ChargeType = "equipment"
	ChargeTypeOther        ChargeType = "other"
)

// ChargeTypes lists every type the catalog must resolve at startup
var ChargeTypes = []ChargeType{
	ChargeTypeInstallation,
	ChargeTypeProration,
	ChargeTypeRecurring,
	ChargeTypeReconnection,
	ChargeTypeEquipment,
	ChargeTypeOther,
}

func (t ChargeType) String() string {
	return string(t)
}

// IsPeriodic reports types that belong to a billing period and are unique per (subscription, period)
func (t ChargeType) IsPeriodic() bool {
	return t == ChargeTypeRecurring || t == ChargeTypeProration
}

func (t ChargeType) Validate() error {
	if !lo.Contains(ChargeTypes, t) {
		return ierr.NewError("invalid charge type").
			WithHint("Please provide a valid charge type").
			WithReportableDetails(map[string]any{
				"charge_type": t,
				"allowed":     ChargeTypes,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ChargeState is the payment state of a charge. Overdue is never stored; it is derived when a
// statement is built.
type ChargeState string

const (
	ChargeStatePending   ChargeState = "pending"
	ChargeStatePartial   ChargeState = "partial"
	ChargeStatePaid      ChargeState = "paid"
	ChargeStateCancelled ChargeState = "cancelled"
	ChargeStateOverdue   ChargeState = "overdue"
)

// ChargeStates lists the persisted states, the ones the catalog must resolve
var ChargeStates = []ChargeState{
	ChargeStatePending,
	ChargeStatePartial,
	ChargeStatePaid,
	ChargeStateCancelled,
}

func (s ChargeState) String() string {
	return string(s)
}

// IsTerminal reports states that accept no further payments
func (s ChargeState) IsTerminal() bool {
	return s == ChargeStatePaid || s == ChargeStateCancelled
}

func (s ChargeState) Validate() error {
	if !lo.Contains(ChargeStates, s) {
		return ierr.NewError("invalid charge state").
			WithHint("Please provide a valid charge state").
			WithReportableDetails(map[string]any{
				"charge_state": s,
				"allowed":      ChargeStates,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
