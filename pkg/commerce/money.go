package commerce

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Money is a currency amount held in minor units (cents) for exact
// arithmetic. On the wire it is the decimal-string shape commerce platforms
// use: {"amount":"40.00","currencyCode":"USD"}.
type Money struct {
	Units    int64
	Currency string
}

// NewMoney builds a Money from minor units.
func NewMoney(units int64, currency string) Money {
	return Money{Units: units, Currency: currency}
}

// ParseAmount converts a decimal string like "40.00" or "7.5" to minor
// units. At most two fractional digits are accepted.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	var f int64
	switch len(frac) {
	case 0:
	case 1:
		f, err = strconv.ParseInt(frac, 10, 64)
		f *= 10
	case 2:
		f, err = strconv.ParseInt(frac, 10, 64)
	default:
		return 0, fmt.Errorf("parse amount %q: too many decimal places", s)
	}
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	units := w*100 + f
	if neg {
		units = -units
	}
	return units, nil
}

// Amount renders the value as a decimal string with two fractional digits.
func (m Money) Amount() string {
	units := m.Units
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%02d", sign, units/100, units%100)
}

func (m Money) String() string {
	return m.Amount() + " " + m.Currency
}

// Add returns m + other. The currency of m wins; mixing currencies is a
// caller bug the backend would reject anyway.
func (m Money) Add(other Money) Money {
	cur := m.Currency
	if cur == "" {
		cur = other.Currency
	}
	return Money{Units: m.Units + other.Units, Currency: cur}
}

// Mul returns m scaled by an integer quantity.
func (m Money) Mul(qty int) Money {
	return Money{Units: m.Units * int64(qty), Currency: m.Currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Units == 0 }

type moneyJSON struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// MarshalJSON emits the decimal-string wire shape.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount(), CurrencyCode: m.Currency})
}

// UnmarshalJSON accepts the decimal-string wire shape.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	units, err := ParseAmount(raw.Amount)
	if err != nil {
		return err
	}
	m.Units = units
	m.Currency = raw.CurrencyCode
	return nil
}
