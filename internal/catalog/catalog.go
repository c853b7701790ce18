// Package catalog maps the charge type and charge state enums to the ids of their catalog rows.
// The mapping is loaded once at startup and never changes afterwards.
package catalog

import (
	"context"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
)

// Entry is one row of a catalog table
type Entry struct {
	ID   int    `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Source reads the catalog tables
type Source interface {
	ListChargeTypes(ctx context.Context) ([]Entry, error)
	ListChargeStates(ctx context.Context) ([]Entry, error)
}

// Catalog is an immutable two way mapping between enums and catalog ids
type Catalog struct {
	typeIDs    map[types.ChargeType]int
	typesByID  map[int]types.ChargeType
	stateIDs   map[types.ChargeState]int
	statesByID map[int]types.ChargeState
}

// Load reads both catalog tables and builds the mapping
func Load(ctx context.Context, src Source) (*Catalog, error) {
	chargeTypes, err := src.ListChargeTypes(ctx)
	if err != nil {
		return nil, err
	}
	chargeStates, err := src.ListChargeStates(ctx)
	if err != nil {
		return nil, err
	}
	return New(chargeTypes, chargeStates)
}

// New builds a catalog and fails when any charge type or persisted charge state has no row
func New(chargeTypes, chargeStates []Entry) (*Catalog, error) {
	c := &Catalog{
		typeIDs:    make(map[types.ChargeType]int, len(chargeTypes)),
		typesByID:  make(map[int]types.ChargeType, len(chargeTypes)),
		stateIDs:   make(map[types.ChargeState]int, len(chargeStates)),
		statesByID: make(map[int]types.ChargeState, len(chargeStates)),
	}

	for _, e := range chargeTypes {
		t := types.ChargeType(e.Code)
		c.typeIDs[t] = e.ID
		c.typesByID[e.ID] = t
	}
	for _, e := range chargeStates {
		s := types.ChargeState(e.Code)
		c.stateIDs[s] = e.ID
		c.statesByID[e.ID] = s
	}

	for _, t := range types.ChargeTypes {
		if _, ok := c.typeIDs[t]; !ok {
			return nil, missing("charge_types", string(t))
		}
	}
	for _, s := range types.ChargeStates {
		if _, ok := c.stateIDs[s]; !ok {
			return nil, missing("charge_states", string(s))
		}
	}

	return c, nil
}

func missing(table, code string) error {
	return ierr.NewErrorf("catalog entry %s missing from %s", code, table).
		WithHintf("The %s catalog must contain %q", table, code).
		WithReportableDetails(map[string]any{
			"table": table,
			"code":  code,
		}).
		Mark(ierr.ErrSystem)
}

func (c *Catalog) ChargeTypeID(t types.ChargeType) (int, error) {
	id, ok := c.typeIDs[t]
	if !ok {
		return 0, ierr.NewErrorf("unknown charge type %s", t).
			WithHint("Please provide a valid charge type").
			Mark(ierr.ErrValidation)
	}
	return id, nil
}

func (c *Catalog) ChargeType(id int) (types.ChargeType, error) {
	t, ok := c.typesByID[id]
	if !ok {
		return "", ierr.NewErrorf("unknown charge type id %d", id).
			Mark(ierr.ErrSystem)
	}
	return t, nil
}

func (c *Catalog) ChargeStateID(s types.ChargeState) (int, error) {
	id, ok := c.stateIDs[s]
	if !ok {
		return 0, ierr.NewErrorf("unknown charge state %s", s).
			WithHint("Overdue is derived and never persisted").
			Mark(ierr.ErrValidation)
	}
	return id, nil
}

func (c *Catalog) ChargeState(id int) (types.ChargeState, error) {
	s, ok := c.statesByID[id]
	if !ok {
		return "", ierr.NewErrorf("unknown charge state id %d", id).
			Mark(ierr.ErrSystem)
	}
	return s, nil
}
