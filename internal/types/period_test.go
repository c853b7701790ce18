package types

import (
	"testing"
	"time"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingPeriod_Day(t *testing.T) {
	tests := []struct {
		name   string
		period BillingPeriod
		day    int
		want   time.Time
	}{
		{
			name:   "regular day",
			period: BillingPeriod{Month: 5, Year: 2024},
			day:    10,
			want:   time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "cutoff 31 in april clamps to 30",
			period: BillingPeriod{Month: 4, Year: 2024},
			day:    31,
			want:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "cutoff 30 in leap february clamps to 29",
			period: BillingPeriod{Month: 2, Year: 2024},
			day:    30,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "cutoff 29 in non leap february clamps to 28",
			period: BillingPeriod{Month: 2, Year: 2023},
			day:    29,
			want:   time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.period.Day(tt.day))
		})
	}
}

func TestBillingPeriod_Navigation(t *testing.T) {
	p := BillingPeriod{Month: 12, Year: 2024}
	assert.Equal(t, BillingPeriod{Month: 1, Year: 2025}, p.Next())
	assert.Equal(t, "2024-12", p.String())
	assert.Equal(t, 31, p.DaysInMonth())
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), p.End())
	assert.True(t, p.Contains(time.Date(2024, 12, 15, 18, 30, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBillingPeriod_Validate(t *testing.T) {
	_, err := NewBillingPeriod(13, 2024)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	_, err = NewBillingPeriod(5, 24)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	p, err := ParseBillingPeriod("2024-05")
	require.NoError(t, err)
	assert.Equal(t, BillingPeriod{Month: 5, Year: 2024}, p)

	_, err = ParseBillingPeriod("May 2024")
	assert.True(t, ierr.IsValidation(err))
}
