// Package money provides the exact-decimal amount type used throughout the
// ledger. Entries and balances are single-currency (see Non-goals), so this
// wraps govalues/decimal directly rather than the currency-tagged
// govalues/money.Amount the rest of the example pack reaches for.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/govalues/decimal"
)

// Amount is an exact decimal value with at least 8 fractional digits of
// precision, matching the ledger's persistence requirement (18 digits
// minimum, 8 fractional minimum). Never backed by float64.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{}

// New builds an Amount from a decimal string, e.g. "74.50" or "-12.003".
func New(s string) (Amount, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

// MustNew is New but panics on error; used for constants in tests.
func MustNew(s string) Amount {
	a, err := New(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromMinorUnits builds an Amount from an integer count of the smallest unit
// (e.g. cents) at the given scale (e.g. 2 for cents).
func FromMinorUnits(units int64, scale int) (Amount, error) {
	d, err := decimal.New(units, scale)
	if err != nil {
		return Amount{}, fmt.Errorf("money: from minor units: %w", err)
	}
	return Amount{d: d}, nil
}

// String renders the amount in plain decimal form.
func (a Amount) String() string { return a.d.String() }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// IsNeg reports whether the amount is strictly negative.
func (a Amount) IsNeg() bool { return a.d.IsNeg() }

// IsPos reports whether the amount is strictly positive.
func (a Amount) IsPos() bool { return a.d.IsPos() }

// Add returns a + b.
func Add(a, b Amount) (Amount, error) {
	d, err := a.d.Add(b.d)
	if err != nil {
		return Amount{}, fmt.Errorf("money: add: %w", err)
	}
	return Amount{d: d}, nil
}

// Sub returns a - b.
func Sub(a, b Amount) (Amount, error) {
	d, err := a.d.Sub(b.d)
	if err != nil {
		return Amount{}, fmt.Errorf("money: sub: %w", err)
	}
	return Amount{d: d}, nil
}

// Cmp compares a and b, returning -1, 0, or 1.
func Cmp(a, b Amount) int { return a.d.Cmp(b.d) }

// Neg returns -a.
func Neg(a Amount) Amount { return Amount{d: a.d.Neg()} }

// MarshalJSON renders the amount as a bare JSON string (not a float, to avoid
// precision loss in clients with binary floating point).
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON parses a JSON string into an Amount.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.Parse(s)
	if err != nil {
		return fmt.Errorf("money: unmarshal %q: %w", s, err)
	}
	a.d = d
	return nil
}

// Value implements driver.Valuer so Amount can be bound directly as a
// Postgres numeric parameter.
func (a Amount) Value() (driver.Value, error) { return a.d.String(), nil }

// Scan implements sql.Scanner so Amount can be read back from a numeric column.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case string:
		d, err := decimal.Parse(v)
		if err != nil {
			return err
		}
		a.d = d
		return nil
	case []byte:
		d, err := decimal.Parse(string(v))
		if err != nil {
			return err
		}
		a.d = d
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T into Amount", src)
	}
}
