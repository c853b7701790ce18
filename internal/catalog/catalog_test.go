package catalog

import (
	"context"
	"errors"
	"testing"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	chargeTypes  []Entry
	chargeStates []Entry
	err          error
}

func (s staticSource) ListChargeTypes(context.Context) ([]Entry, error) {
	return s.chargeTypes, s.err
}

func (s staticSource) ListChargeStates(context.Context) ([]Entry, error) {
	return s.chargeStates, s.err
}

func TestLoad_ResolvesBothDirections(t *testing.T) {
	c, err := Load(context.Background(), staticSource{chargeTypes: SeedChargeTypes, chargeStates: SeedChargeStates})
	require.NoError(t, err)

	for _, ct := range types.ChargeTypes {
		id, err := c.ChargeTypeID(ct)
		require.NoError(t, err)
		back, err := c.ChargeType(id)
		require.NoError(t, err)
		assert.Equal(t, ct, back)
	}

	id, err := c.ChargeStateID(types.ChargeStateCancelled)
	require.NoError(t, err)
	assert.Equal(t, 4, id)
}

func TestLoad_FailsFastOnMissingEntry(t *testing.T) {
	_, err := Load(context.Background(), staticSource{chargeTypes: SeedChargeTypes[:5], chargeStates: SeedChargeStates})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ierr.ErrSystem))
	assert.Equal(t, "other", ierr.Details(err)["code"])

	_, err = New(SeedChargeTypes, SeedChargeStates[:3])
	require.Error(t, err)
}

func TestLoad_PropagatesSourceError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := Load(context.Background(), staticSource{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestCatalog_OverdueIsNotPersisted(t *testing.T) {
	_, err := Default().ChargeStateID(types.ChargeStateOverdue)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	_, err = Default().ChargeType(99)
	assert.Error(t, err)
}
