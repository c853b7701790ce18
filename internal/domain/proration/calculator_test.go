package proration

import (
	"testing"
	"time"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Calculate(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		expected *Result
	}{
		{
			name: "first_of_30_day_month",
			params: Params{
				InstallDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(300),
				CutoffDay:    10,
			},
			expected: &Result{
				Period:      types.BillingPeriod{Month: 6, Year: 2024},
				CutoffDay:   10,
				FirstDay:    1,
				LastDay:     9,
				DaysToBill:  9,
				DaysInMonth: 30,
				DailyRate:   decimal.NewFromInt(10),
				Amount:      decimal.RequireFromString("90.00"),
				DueDate:     time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
				Concept:     "Proration 2024-06 (days 1-9, 9 of 30 days)",
			},
		},
		{
			name: "31_day_month_rounds_to_cent",
			params: Params{
				InstallDate:  time.Date(2024, 5, 6, 15, 30, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(600),
				CutoffDay:    15,
			},
			expected: &Result{
				Period:      types.BillingPeriod{Month: 5, Year: 2024},
				CutoffDay:   15,
				FirstDay:    6,
				LastDay:     14,
				DaysToBill:  9,
				DaysInMonth: 31,
				DailyRate:   decimal.NewFromInt(600).Div(decimal.NewFromInt(31)),
				// 600 * 9 / 31 = 174.1935...
				Amount:  decimal.RequireFromString("174.19"),
				DueDate: time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
				Concept: "Proration 2024-05 (days 6-14, 9 of 31 days)",
			},
		},
		{
			name: "half_cent_rounds_up",
			params: Params{
				InstallDate:  time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.RequireFromString("450.15"),
				CutoffDay:    10,
			},
			expected: &Result{
				Period:      types.BillingPeriod{Month: 6, Year: 2024},
				CutoffDay:   10,
				FirstDay:    9,
				LastDay:     9,
				DaysToBill:  1,
				DaysInMonth: 30,
				DailyRate:   decimal.RequireFromString("15.005"),
				Amount:      decimal.RequireFromString("15.01"),
				DueDate:     time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
				Concept:     "Proration 2024-06 (days 9-9, 1 of 30 days)",
			},
		},
		{
			name: "cutoff_past_month_end_is_clamped",
			params: Params{
				InstallDate:  time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(300),
				CutoffDay:    31,
			},
			expected: &Result{
				Period:      types.BillingPeriod{Month: 4, Year: 2024},
				CutoffDay:   30,
				FirstDay:    20,
				LastDay:     29,
				DaysToBill:  10,
				DaysInMonth: 30,
				DailyRate:   decimal.NewFromInt(10),
				Amount:      decimal.RequireFromString("100.00"),
				DueDate:     time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
				Concept:     "Proration 2024-04 (days 20-29, 10 of 30 days)",
			},
		},
	}

	calc := NewCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Calculate(tt.params)
			require.NoError(t, err)
			require.NotNil(t, got)

			assert.Equal(t, tt.expected.Period, got.Period)
			assert.Equal(t, tt.expected.CutoffDay, got.CutoffDay)
			assert.Equal(t, tt.expected.FirstDay, got.FirstDay)
			assert.Equal(t, tt.expected.LastDay, got.LastDay)
			assert.Equal(t, tt.expected.DaysToBill, got.DaysToBill)
			assert.Equal(t, tt.expected.DaysInMonth, got.DaysInMonth)
			assert.True(t, tt.expected.DailyRate.Equal(got.DailyRate), "daily rate: expected %s, got %s", tt.expected.DailyRate, got.DailyRate)
			assert.True(t, tt.expected.Amount.Equal(got.Amount), "amount: expected %s, got %s", tt.expected.Amount, got.Amount)
			assert.Equal(t, tt.expected.DueDate, got.DueDate)
			assert.Equal(t, tt.expected.Concept, got.Concept)
		})
	}
}

func TestCalculator_NoProration(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{
			name: "installed_on_cutoff_day",
			params: Params{
				InstallDate:  time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(600),
				CutoffDay:    10,
			},
		},
		{
			name: "installed_after_cutoff_day",
			params: Params{
				InstallDate:  time.Date(2024, 5, 25, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(600),
				CutoffDay:    10,
			},
		},
		{
			name: "installed_on_clamped_cutoff",
			params: Params{
				InstallDate:  time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(600),
				CutoffDay:    30,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.params)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestCalculator_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{
			name:   "missing_install_date",
			params: Params{MonthlyPrice: decimal.NewFromInt(300), CutoffDay: 10},
		},
		{
			name: "zero_price",
			params: Params{
				InstallDate:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.Zero,
				CutoffDay:    10,
			},
		},
		{
			name: "cutoff_out_of_range",
			params: Params{
				InstallDate:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(300),
				CutoffDay:    32,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.params)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, ierr.IsValidation(err))
		})
	}
}
