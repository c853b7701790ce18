package proration

import (
	"fmt"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// Calculator computes the proration owed for a mid-cycle installation
type Calculator interface {
	// Calculate returns nil when the installation day is on or after the cutoff day
	Calculate(params Params) (*Result, error)
}

// NewCalculator returns the day based cutoff calculator
func NewCalculator() Calculator {
	return &cutoffCalculator{}
}

// Compute is a shorthand for NewCalculator().Calculate
func Compute(params Params) (*Result, error) {
	return NewCalculator().Calculate(params)
}

// cutoffCalculator bills the whole days from the installation day up to the day before the cutoff
type cutoffCalculator struct{}

func (c *cutoffCalculator) Calculate(params Params) (*Result, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	installDate := types.DateOnly(params.InstallDate)
	period := types.PeriodOf(installDate)
	daysInMonth := period.DaysInMonth()

	// a cutoff past the end of the month rolls over on the last day
	cutoff := params.CutoffDay
	if cutoff > daysInMonth {
		cutoff = daysInMonth
	}

	day := installDate.Day()
	if day >= cutoff {
		return nil, nil
	}

	daysToBill := cutoff - day
	dim := decimal.NewFromInt(int64(daysInMonth))

	// multiply before dividing so the only rounding is the final one to the cent
	amount := params.MonthlyPrice.
		Mul(decimal.NewFromInt(int64(daysToBill))).
		Div(dim).
		Round(2)

	return &Result{
		Period:      period,
		CutoffDay:   cutoff,
		FirstDay:    day,
		LastDay:     cutoff - 1,
		DaysToBill:  daysToBill,
		DaysInMonth: daysInMonth,
		DailyRate:   params.MonthlyPrice.Div(dim),
		Amount:      amount,
		DueDate:     period.Day(cutoff),
		Concept:     Concept(period, day, cutoff-1, daysInMonth),
	}, nil
}

// Concept renders the auditable description of a proration charge, ex
// "Proration 2024-05 (days 1-9, 9 of 31 days)"
func Concept(period types.BillingPeriod, firstDay, lastDay, daysInMonth int) string {
	return fmt.Sprintf("Proration %s (days %d-%d, %d of %d days)",
		period.String(), firstDay, lastDay, lastDay-firstDay+1, daysInMonth)
}

func validateParams(params Params) error {
	if params.InstallDate.IsZero() {
		return ierr.NewError("installation date is required").
			WithHint("Installation date is required to compute a proration").
			Mark(ierr.ErrValidation)
	}
	if !params.MonthlyPrice.IsPositive() {
		return ierr.NewError("invalid monthly price").
			WithHint("Monthly price must be greater than 0").
			WithReportableDetails(map[string]any{
				"monthly_price": params.MonthlyPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if params.CutoffDay < 1 || params.CutoffDay > 31 {
		return ierr.NewError("invalid cutoff day").
			WithHint("Cutoff day must be between 1 and 31").
			WithReportableDetails(map[string]any{
				"cutoff_day": params.CutoffDay,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
