package proration

import (
	"time"

	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// Params holds the input of a proration calculation
type Params struct {
	InstallDate  time.Time       // Day the service started
	MonthlyPrice decimal.Decimal // Current monthly price of the subscription
	CutoffDay    int             // Day of month the billing cycle rolls over, 1-31
}

// Result is the partial period charge owed between the installation day and the first cutoff
type Result struct {
	Period      types.BillingPeriod `json:"period"`
	CutoffDay   int                 `json:"cutoff_day"`    // Cutoff day after clamping to the month length
	FirstDay    int                 `json:"first_day"`     // First billed day of month, the installation day
	LastDay     int                 `json:"last_day"`      // Last billed day of month, the day before the cutoff
	DaysToBill  int                 `json:"days_to_bill"`  // LastDay - FirstDay + 1
	DaysInMonth int                 `json:"days_in_month"` // Calendar days of the installation month
	DailyRate   decimal.Decimal     `json:"daily_rate"`    // MonthlyPrice / DaysInMonth, unrounded
	Amount      decimal.Decimal     `json:"amount"`        // Rounded half up to the cent
	DueDate     time.Time           `json:"due_date"`      // Cutoff day of the installation month
	Concept     string              `json:"concept"`
}
