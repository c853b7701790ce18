package charge

import (
	"context"
	"time"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// Charge is a billable obligation of one subscription
type Charge struct {
	ID string `json:"id"`
	// ClientID is copied from the subscription when the charge is created
	ClientID       string           `json:"client_id"`
	SubscriptionID string           `json:"subscription_id"`
	ChargeType     types.ChargeType `json:"charge_type"`
	Concept        string           `json:"concept"`
	Amount         decimal.Decimal  `json:"amount"`
	AmountPaid     decimal.Decimal  `json:"amount_paid"`
	// Balance is stored and always equals Amount - AmountPaid
	Balance   decimal.Decimal `json:"balance"`
	IssueDate time.Time       `json:"issue_date"`
	DueDate   time.Time       `json:"due_date"`
	// Period is set only for recurring and proration charges
	Period      *types.BillingPeriod `json:"period,omitempty"`
	ChargeState types.ChargeState    `json:"charge_state"`
	CancelledAt *time.Time           `json:"cancelled_at,omitempty"`

	types.BaseModel
}

// NewCharge builds a pending charge stamped from the context
func NewCharge(ctx context.Context, clientID, subscriptionID string, chargeType types.ChargeType, concept string,
	amount decimal.Decimal, issueDate, dueDate time.Time, period *types.BillingPeriod) *Charge {
	return &Charge{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE),
		ClientID:       clientID,
		SubscriptionID: subscriptionID,
		ChargeType:     chargeType,
		Concept:        concept,
		Amount:         amount,
		AmountPaid:     decimal.Zero,
		Balance:        amount,
		IssueDate:      types.DateOnly(issueDate),
		DueDate:        types.DateOnly(dueDate),
		Period:         period,
		ChargeState:    types.ChargeStatePending,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

func (c *Charge) Validate() error {
	if !c.Amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Charge amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"amount": c.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if c.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("A charge must reference a subscription").
			Mark(ierr.ErrValidation)
	}
	if c.ClientID == "" {
		return ierr.NewError("client_id is required").
			WithHint("A charge must reference a client").
			Mark(ierr.ErrValidation)
	}
	if err := c.ChargeType.Validate(); err != nil {
		return err
	}
	if c.Concept == "" {
		return ierr.NewError("concept is required").
			WithHint("Please describe what the charge is for").
			Mark(ierr.ErrValidation)
	}
	if c.IssueDate.IsZero() || c.DueDate.IsZero() {
		return ierr.NewError("issue and due dates are required").
			WithHint("Issue date and due date are required").
			Mark(ierr.ErrValidation)
	}
	if c.ChargeType.IsPeriodic() {
		if c.Period == nil {
			return ierr.NewErrorf("%s charges need a billing period", c.ChargeType).
				WithHint("Recurring and proration charges must name their billing period").
				Mark(ierr.ErrValidation)
		}
		if err := c.Period.Validate(); err != nil {
			return err
		}
	} else if c.Period != nil {
		return ierr.NewErrorf("%s charges cannot have a billing period", c.ChargeType).
			WithHint("Only recurring and proration charges belong to a billing period").
			Mark(ierr.ErrValidation)
	}
	return c.checkBalance()
}

// checkBalance guards 0 <= paid <= amount and balance = amount - paid
func (c *Charge) checkBalance() error {
	if c.AmountPaid.IsNegative() || c.AmountPaid.GreaterThan(c.Amount) || !c.Balance.Equal(c.Amount.Sub(c.AmountPaid)) {
		return ierr.NewError("charge balance out of bounds").
			WithHint("Amount paid must stay between 0 and the charge amount").
			WithReportableDetails(map[string]any{
				"charge_id":   c.ID,
				"amount":      c.Amount.String(),
				"amount_paid": c.AmountPaid.String(),
				"balance":     c.Balance.String(),
			}).
			Mark(ierr.ErrInvariantViolation)
	}
	return nil
}

func (c *Charge) IsCancelled() bool {
	return c.ChargeState == types.ChargeStateCancelled
}

// IsOutstanding reports whether the charge can still receive payments
func (c *Charge) IsOutstanding() bool {
	return c.Status == types.StatusPublished && !c.IsCancelled() && c.Balance.IsPositive()
}

// ApplyPayment adds amount to what has been paid. It never clamps: paying past the
// amount, or paying a paid or cancelled charge, is an invariant violation.
func (c *Charge) ApplyPayment(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Applied amount must be greater than 0").
			WithReportableDetails(map[string]any{
				"charge_id": c.ID,
				"amount":    amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	newPaid := c.AmountPaid.Add(amount)
	if c.ChargeState.IsTerminal() || newPaid.GreaterThan(c.Amount) {
		return ierr.NewError("over application").
			WithHintf("Cannot apply %s to charge %s", amount.String(), c.ID).
			WithReportableDetails(map[string]any{
				"charge_id":    c.ID,
				"charge_state": c.ChargeState,
				"amount":       c.Amount.String(),
				"amount_paid":  c.AmountPaid.String(),
				"applied":      amount.String(),
			}).
			Mark(ierr.ErrInvariantViolation)
	}

	c.setPaid(newPaid)
	return nil
}

// RevertPayment removes a previously applied amount, used when a payment is cancelled
func (c *Charge) RevertPayment(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Reverted amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}

	newPaid := c.AmountPaid.Sub(amount)
	if newPaid.IsNegative() {
		return ierr.NewError("over reversal").
			WithHintf("Cannot revert %s from charge %s", amount.String(), c.ID).
			WithReportableDetails(map[string]any{
				"charge_id":   c.ID,
				"amount_paid": c.AmountPaid.String(),
				"reverted":    amount.String(),
			}).
			Mark(ierr.ErrInvariantViolation)
	}

	c.setPaid(newPaid)
	return nil
}

// Cancel moves the charge to the terminal cancelled state
func (c *Charge) Cancel(at time.Time) error {
	if c.IsCancelled() {
		return ierr.NewError("charge already cancelled").
			WithHintf("Charge %s is already cancelled", c.ID).
			Mark(ierr.ErrInvalidOperation)
	}
	c.ChargeState = types.ChargeStateCancelled
	c.CancelledAt = &at
	return nil
}

func (c *Charge) setPaid(paid decimal.Decimal) {
	c.AmountPaid = paid
	c.Balance = c.Amount.Sub(paid)
	c.ChargeState = DeriveState(c.Amount, c.AmountPaid, c.IsCancelled())
}

// ViewState is the state shown on statements: an unpaid charge past its due date is overdue.
func (c *Charge) ViewState(asOf time.Time) types.ChargeState {
	if c.ChargeState.IsTerminal() || !c.Balance.IsPositive() {
		return c.ChargeState
	}
	if c.DueDate.Before(types.DateOnly(asOf)) {
		return types.ChargeStateOverdue
	}
	return c.ChargeState
}

// PeriodKey identifies the period slot a periodic charge occupies, empty for other charges
func (c *Charge) PeriodKey() string {
	if c.Period == nil {
		return ""
	}
	return c.SubscriptionID + "|" + c.ChargeType.String() + "|" + c.Period.String()
}
