package migrations

import (
	"strings"
	"testing"

	"github.com/flexprice/ispledger/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	all, err := Load()
	require.NoError(t, err)
	require.Len(t, all, 5)

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}
	assert.Equal(t, "000001", all[0].Version)
	assert.Equal(t, "catalogs", all[0].Name)
}

func TestLoad_SeedsMatchCatalog(t *testing.T) {
	all, err := Load()
	require.NoError(t, err)
	seed := all[0].SQL

	for _, e := range catalog.SeedChargeTypes {
		assert.Contains(t, seed, "'"+e.Code+"'")
	}
	for _, e := range catalog.SeedChargeStates {
		assert.Contains(t, seed, "'"+e.Code+"'")
	}

	var charges string
	for _, m := range all {
		if m.Name == "charges" {
			charges = m.SQL
		}
	}
	require.NotEmpty(t, charges)
	assert.True(t, strings.Contains(charges, "idx_charges_period"))
	assert.True(t, strings.Contains(charges, "charge_state_id <> 4"))
}
