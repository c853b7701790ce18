package types

import (
	"fmt"
	"time"

	ierr "github.com/flexprice/ispledger/internal/errors"
)

// BillingPeriod is a calendar month a periodic charge belongs to
type BillingPeriod struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=9999"`
}

// NewBillingPeriod builds a validated period
func NewBillingPeriod(month, year int) (BillingPeriod, error) {
	p := BillingPeriod{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return BillingPeriod{}, err
	}
	return p, nil
}

// PeriodOf returns the period containing the calendar date of t
func PeriodOf(t time.Time) BillingPeriod {
	return BillingPeriod{Month: int(t.Month()), Year: t.Year()}
}

// ParseBillingPeriod parses the YYYY-MM form produced by String
func ParseBillingPeriod(s string) (BillingPeriod, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return BillingPeriod{}, ierr.WithError(err).
			WithHintf("Billing period %q must look like 2024-05", s).
			Mark(ierr.ErrValidation)
	}
	return PeriodOf(t), nil
}

func (p BillingPeriod) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ierr.NewError("invalid billing period month").
			WithHint("Month must be between 1 and 12").
			WithReportableDetails(map[string]any{
				"month": p.Month,
			}).
			Mark(ierr.ErrValidation)
	}
	if p.Year < 2000 || p.Year > 9999 {
		return ierr.NewError("invalid billing period year").
			WithHint("Year must have four digits").
			WithReportableDetails(map[string]any{
				"year": p.Year,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (p BillingPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Start is midnight UTC of the first day of the period
func (p BillingPeriod) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End is midnight UTC of the last day of the period
func (p BillingPeriod) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

func (p BillingPeriod) Next() BillingPeriod {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

func (p BillingPeriod) DaysInMonth() int {
	return p.End().Day()
}

// Day returns the given day of the period, clamped to the last day of the month.
// A cutoff day of 31 falls on the 30th in April and on the 28th or 29th in February.
func (p BillingPeriod) Day(day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := p.DaysInMonth(); day > last {
		day = last
	}
	return time.Date(p.Year, time.Month(p.Month), day, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether the calendar date of t falls in the period
func (p BillingPeriod) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

// DateOnly drops the clock of t and returns its calendar date at midnight UTC
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days of the month containing t
func DaysIn(t time.Time) int {
	return PeriodOf(t).DaysInMonth()
}
