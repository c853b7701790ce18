package subscription

import (
	"time"

	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription is a client's internet service as maintained by the service administration
// system. The ledger reads it and never writes it.
type Subscription struct {
	ID                 string                   `db:"id" json:"id"`
	TenantID           string                   `db:"tenant_id" json:"tenant_id"`
	ClientID           string                   `db:"client_id" json:"client_id"`
	MonthlyPrice       decimal.Decimal          `db:"monthly_price" json:"monthly_price"`
	CutoffDay          int                      `db:"cutoff_day" json:"cutoff_day"`
	InstalledAt        *time.Time               `db:"installed_at" json:"installed_at,omitempty"`
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
}

func (s *Subscription) IsActive() bool {
	return s.SubscriptionStatus == types.SubscriptionStatusActive
}

// IsBillableIn reports whether a recurring charge is due for the period: the subscription is
// active and was installed on or before the last day of the period.
func (s *Subscription) IsBillableIn(period types.BillingPeriod) bool {
	if !s.IsActive() || s.InstalledAt == nil {
		return false
	}
	return !types.DateOnly(*s.InstalledAt).After(period.End())
}
