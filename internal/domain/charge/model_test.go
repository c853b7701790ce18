package charge

import (
	"context"
	"testing"
	"time"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestCharge(amount string) *Charge {
	ctx := types.SetTenantID(context.Background(), types.DefaultTenantID)
	return NewCharge(ctx, "client_1", "sub_1", types.ChargeTypeInstallation, "Installation fee", d(amount),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), nil)
}

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		amountPaid string
		cancelled  bool
		want       types.ChargeState
	}{
		{"nothing paid", "100", "0", false, types.ChargeStatePending},
		{"partly paid", "100", "0.01", false, types.ChargeStatePartial},
		{"fully paid", "100", "100.00", false, types.ChargeStatePaid},
		{"cancelled pending", "100", "0", true, types.ChargeStateCancelled},
		{"cancelled paid", "100", "100", true, types.ChargeStateCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveState(d(tt.amount), d(tt.amountPaid), tt.cancelled))
		})
	}
}

func TestCharge_ApplyPayment(t *testing.T) {
	c := newTestCharge("150")
	require.NoError(t, c.Validate())

	require.NoError(t, c.ApplyPayment(d("80")))
	assert.Equal(t, types.ChargeStatePartial, c.ChargeState)
	assert.True(t, c.Balance.Equal(d("70")))

	err := c.ApplyPayment(d("70.01"))
	require.Error(t, err)
	assert.True(t, ierr.IsInvariantViolation(err))
	assert.True(t, c.AmountPaid.Equal(d("80")), "failed application must not mutate the charge")

	require.NoError(t, c.ApplyPayment(d("70")))
	assert.Equal(t, types.ChargeStatePaid, c.ChargeState)
	assert.True(t, c.Balance.IsZero())

	err = c.ApplyPayment(d("1"))
	assert.True(t, ierr.IsInvariantViolation(err))

	err = c.ApplyPayment(decimal.Zero)
	assert.True(t, ierr.IsValidation(err))
}

func TestCharge_CancelAndRevert(t *testing.T) {
	c := newTestCharge("100")
	require.NoError(t, c.ApplyPayment(d("40")))

	require.NoError(t, c.Cancel(time.Now()))
	assert.True(t, c.IsCancelled())
	assert.False(t, c.IsOutstanding(), "cancelled charges are never outstanding even with a balance")
	assert.True(t, ierr.IsInvariantViolation(c.ApplyPayment(d("1"))))
	assert.True(t, ierr.IsInvalidOperation(c.Cancel(time.Now())))

	// reverting a payment on a cancelled charge keeps it cancelled
	require.NoError(t, c.RevertPayment(d("40")))
	assert.True(t, c.AmountPaid.IsZero())
	assert.Equal(t, types.ChargeStateCancelled, c.ChargeState)

	assert.True(t, ierr.IsInvariantViolation(c.RevertPayment(d("0.01"))))
}

func TestCharge_Validate(t *testing.T) {
	c := newTestCharge("0")
	assert.True(t, ierr.IsValidation(c.Validate()))

	c = newTestCharge("10")
	c.ChargeType = types.ChargeTypeRecurring
	assert.True(t, ierr.IsValidation(c.Validate()), "recurring without period")

	c.Period = &types.BillingPeriod{Month: 5, Year: 2024}
	assert.NoError(t, c.Validate())

	c.ChargeType = types.ChargeTypeEquipment
	assert.True(t, ierr.IsValidation(c.Validate()), "equipment with period")

	c = newTestCharge("10")
	c.Balance = d("3")
	assert.True(t, ierr.IsInvariantViolation(c.Validate()))
}

func TestCharge_ViewState(t *testing.T) {
	c := newTestCharge("100")
	due := c.DueDate

	assert.Equal(t, types.ChargeStatePending, c.ViewState(due))
	assert.Equal(t, types.ChargeStateOverdue, c.ViewState(due.AddDate(0, 0, 1)))

	require.NoError(t, c.ApplyPayment(d("100")))
	assert.Equal(t, types.ChargeStatePaid, c.ViewState(due.AddDate(0, 1, 0)))
}
