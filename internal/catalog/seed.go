package catalog

// SeedChargeTypes and SeedChargeStates are the rows inserted by the initial migration.
// The cancelled state id is also part of the partial unique index on periodic charges.
var (
	SeedChargeTypes = []Entry{
		{ID: 1, Code: "installation", Name: "Instalación"},
		{ID: 2, Code: "proration", Name: "Prorrateo"},
		{ID: 3, Code: "recurring", Name: "Mensualidad"},
		{ID: 4, Code: "reconnection", Name: "Reconexión"},
		{ID: 5, Code: "equipment", Name: "Equipo"},
		{ID: 6, Code: "other", Name: "Otro"},
	}

	SeedChargeStates = []Entry{
		{ID: 1, Code: "pending", Name: "Pendiente"},
		{ID: 2, Code: "partial", Name: "Parcial"},
		{ID: 3, Code: "paid", Name: "Pagado"},
		{ID: 4, Code: "cancelled", Name: "Cancelado"},
	}
)

// Default returns the catalog matching the seeded rows
func Default() *Catalog {
	c, err := New(SeedChargeTypes, SeedChargeStates)
	if err != nil {
		panic(err)
	}
	return c
}
