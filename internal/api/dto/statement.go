package dto

import (
	"time"

	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

// StatementLine is one outstanding charge as seen on a given date
type StatementLine struct {
	ChargeID       string               `json:"charge_id"`
	SubscriptionID string               `json:"subscription_id"`
	ChargeType     types.ChargeType     `json:"charge_type"`
	Concept        string               `json:"concept"`
	Amount         decimal.Decimal      `json:"amount" swaggertype:"string"`
	AmountPaid     decimal.Decimal      `json:"amount_paid" swaggertype:"string"`
	Balance        decimal.Decimal      `json:"balance" swaggertype:"string"`
	IssueDate      time.Time            `json:"issue_date"`
	DueDate        time.Time            `json:"due_date"`
	Period         *types.BillingPeriod `json:"period,omitempty"`
	// ChargeState is overdue for unpaid charges past their due date
	ChargeState types.ChargeState `json:"charge_state"`
}

func NewStatementLine(c *charge.Charge, asOf time.Time) StatementLine {
	return StatementLine{
		ChargeID:       c.ID,
		SubscriptionID: c.SubscriptionID,
		ChargeType:     c.ChargeType,
		Concept:        c.Concept,
		Amount:         c.Amount,
		AmountPaid:     c.AmountPaid,
		Balance:        c.Balance,
		IssueDate:      c.IssueDate,
		DueDate:        c.DueDate,
		Period:         c.Period,
		ChargeState:    c.ViewState(asOf),
	}
}

// StatementResponse is a client's account position on AsOf
type StatementResponse struct {
	ClientID         string          `json:"client_id"`
	AsOf             time.Time       `json:"as_of"`
	Charges          []StatementLine `json:"charges"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding" swaggertype:"string"`
	TotalOverdue     decimal.Decimal `json:"total_overdue" swaggertype:"string"`
	AvailableCredit  decimal.Decimal `json:"available_credit" swaggertype:"string"`
}
