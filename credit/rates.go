package credit

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// RATE TABLE - Role-tier monthly accrual rates
// =============================================================================

// RateTable maps roles to monthly accrual rates. It is injected rather
// than hard-coded so tests can run synthetic tiers and deployments can
// tune rates without code changes.
type RateTable struct {
	Rates   map[Role]Credits
	Default Credits
}

// DefaultRateTable returns the standard tiers: manager-tier roles earn
// 1.5 credits per month, everyone else 1.25.
func DefaultRateTable() RateTable {
	managerRate := MustParseCredits("1.5")
	return RateTable{
		Rates: map[Role]Credits{
			RoleManager: managerRate,
			RoleAdmin:   managerRate,
		},
		Default: MustParseCredits("1.25"),
	}
}

// MonthlyRate resolves the accrual rate for a role.
func (rt RateTable) MonthlyRate(role Role) Credits {
	if rate, ok := rt.Rates[role]; ok {
		return rate
	}
	return rt.Default
}

// =============================================================================
// JSON CONFIGURATION
// =============================================================================

// rateTableJSON is the on-disk shape:
//
//	{"default": "1.25", "rates": {"manager": "1.5", "admin": "1.5"}}
type rateTableJSON struct {
	Default string            `json:"default"`
	Rates   map[string]string `json:"rates"`
}

// ParseRateTable reads a JSON rate-table document. Missing fields keep
// their defaults, so a document may override only the tiers it names.
func ParseRateTable(data []byte) (RateTable, error) {
	var doc rateTableJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return RateTable{}, fmt.Errorf("parse rate table: %w", err)
	}

	table := DefaultRateTable()
	if doc.Default != "" {
		def, err := ParseCredits(doc.Default)
		if err != nil {
			return RateTable{}, fmt.Errorf("rate table default: %w", err)
		}
		table.Default = def
	}
	for role, s := range doc.Rates {
		rate, err := ParseCredits(s)
		if err != nil {
			return RateTable{}, fmt.Errorf("rate table entry %q: %w", role, err)
		}
		table.Rates[Role(role)] = rate
	}
	return table, nil
}
