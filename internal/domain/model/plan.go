package model

// Plan is one sellable subscription bundle. Prices are kept in centavos to
// avoid float errors.
type Plan struct {
	ID           string // "monthly", "quarterly", "semiannual", "annual"
	Name         string
	PriceCents   int64
	DurationDays int
	SavingsCents int64 // marketing figure vs paying monthly
}

// DefaultPlans is the catalog sold through the dialog. The map key is the
// numeric command that selects the plan inside the plan chooser and from the
// menu shortcut.
var DefaultPlans = map[string]Plan{
	"2": {ID: "monthly", Name: "Mensal", PriceCents: 3500, DurationDays: 30},
	"3": {ID: "quarterly", Name: "Trimestral", PriceCents: 9000, DurationDays: 90, SavingsCents: 1500},
	"4": {ID: "semiannual", Name: "Semestral", PriceCents: 17000, DurationDays: 180, SavingsCents: 4000},
	"5": {ID: "annual", Name: "Anual", PriceCents: 30000, DurationDays: 365, SavingsCents: 12000},
}

// PlanByID resolves a plan by its identifier.
func PlanByID(id string) (Plan, bool) {
	for _, p := range DefaultPlans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
