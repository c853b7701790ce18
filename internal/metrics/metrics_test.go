package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/flexprice/ispledger/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(config.GetDefaultConfig())
	// a second registry must not panic on duplicate registration
	_ = NewMetrics(config.GetDefaultConfig())

	m.IncrChargeCreated("recurring")
	m.IncrChargeCreated("recurring")
	m.RecordAllocation("efectivo", decimal.RequireFromString("180"), decimal.RequireFromString("20.5"))
	m.IncrAllocationConflict("retried")
	m.ObserveOperation("allocate", time.Now(), errors.New("boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.chargesCreated.WithLabelValues("recurring")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.paymentsAllocated.WithLabelValues("efectivo")))
	assert.Equal(t, 180.0, testutil.ToFloat64(m.amountAllocated))
	assert.Equal(t, 20.5, testutil.ToFloat64(m.amountCredited))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ispledger_operation_duration_seconds")
	assert.Contains(t, names, "ispledger_allocation_conflicts_total")
}
