package credit

import "github.com/shopspring/decimal"

// =============================================================================
// CREDITS - Decimal leave-credit quantity
// =============================================================================

// Credits is a quantity of leave credits. One credit covers one working
// day of paid leave; monthly accrual rates (1.25, 1.5) and half-day
// requests make fractional values routine, so arithmetic stays in
// decimals end to end.
type Credits struct {
	Value decimal.Decimal
}

func NewCredits(value float64) Credits    { return Credits{Value: decimal.NewFromFloat(value)} }
func NewCreditsFromInt(value int) Credits { return Credits{Value: decimal.NewFromInt(int64(value))} }
func ZeroCredits() Credits                { return Credits{Value: decimal.Zero} }

// ParseCredits parses a decimal string such as "1.25". Empty input parses
// as zero, matching how optional columns round-trip through storage.
func ParseCredits(s string) (Credits, error) {
	if s == "" {
		return ZeroCredits(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Credits{}, err
	}
	return Credits{Value: d}, nil
}

// MustParseCredits parses a decimal string, falling back to zero on
// malformed input. For literals in tests and seed data.
func MustParseCredits(s string) Credits {
	c, err := ParseCredits(s)
	if err != nil {
		return ZeroCredits()
	}
	return c
}

func (c Credits) Add(o Credits) Credits { return Credits{Value: c.Value.Add(o.Value)} }
func (c Credits) Sub(o Credits) Credits { return Credits{Value: c.Value.Sub(o.Value)} }
func (c Credits) Neg() Credits          { return Credits{Value: c.Value.Neg()} }

func (c Credits) IsZero() bool     { return c.Value.IsZero() }
func (c Credits) IsNegative() bool { return c.Value.IsNegative() }
func (c Credits) IsPositive() bool { return c.Value.IsPositive() }

func (c Credits) Equal(o Credits) bool       { return c.Value.Equal(o.Value) }
func (c Credits) GreaterThan(o Credits) bool { return c.Value.GreaterThan(o.Value) }
func (c Credits) LessThan(o Credits) bool    { return c.Value.LessThan(o.Value) }

func (c Credits) Min(o Credits) Credits {
	if c.LessThan(o) {
		return c
	}
	return o
}

func (c Credits) Max(o Credits) Credits {
	if c.GreaterThan(o) {
		return c
	}
	return o
}

func (c Credits) Float64() float64 {
	f, _ := c.Value.Float64()
	return f
}

func (c Credits) String() string { return c.Value.String() }
