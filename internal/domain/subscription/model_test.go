package subscription

import (
	"testing"
	"time"

	"github.com/flexprice/ispledger/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestSubscription_IsBillableIn(t *testing.T) {
	may := types.BillingPeriod{Month: 5, Year: 2024}

	s := &Subscription{
		SubscriptionStatus: types.SubscriptionStatusActive,
		InstalledAt:        lo.ToPtr(time.Date(2024, 5, 31, 18, 0, 0, 0, time.UTC)),
	}
	assert.True(t, s.IsBillableIn(may))

	s.InstalledAt = lo.ToPtr(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, s.IsBillableIn(may), "installed after the period")

	s.InstalledAt = lo.ToPtr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.SubscriptionStatus = types.SubscriptionStatusSuspended
	assert.False(t, s.IsBillableIn(may))

	s.SubscriptionStatus = types.SubscriptionStatusActive
	s.InstalledAt = nil
	assert.False(t, s.IsBillableIn(may), "not installed yet")
}
