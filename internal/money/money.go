package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	// ErrUnknownCurrency is returned when a currency code is not a known ISO 4217 code.
	ErrUnknownCurrency = errors.New("money: unknown currency")
	// ErrCurrencyMismatch is returned when combining amounts in different currencies.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// Money is a decimal amount held at the minor-unit scale of its currency.
type Money struct {
	amount   decimal.Decimal
	currency string
	scale    int32
}

// ScaleOf returns the number of minor-unit digits for the ISO currency code.
func ScaleOf(code string) (int32, error) {
	unit, err := currency.ParseISO(normalize(code))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), nil
}

// New rounds amount half-up to the currency scale.
func New(amount decimal.Decimal, code string) (Money, error) {
	scale, err := ScaleOf(code)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: Round(amount, scale), currency: normalize(code), scale: scale}, nil
}

// Parse builds Money from a decimal string such as "10.00".
func Parse(amount, code string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse amount %q: %w", amount, err)
	}
	return New(d, code)
}

// MustParse behaves like Parse but panics on error. Intended for tests and constants.
func MustParse(amount, code string) Money {
	m, err := Parse(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(code string) (Money, error) {
	return New(decimal.Zero, code)
}

// Round rounds half away from zero, which is half-up for the non-negative amounts handled here.
func Round(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.Round(scale)
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the upper-case ISO code, or "" for the zero value.
func (m Money) Currency() string { return m.currency }

// Scale returns the minor-unit scale of the currency.
func (m Money) Scale() int32 { return m.scale }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// IsSet reports whether m carries a currency, i.e. it is not the zero value.
func (m Money) IsSet() bool { return m.currency != "" }

// WithAmount returns a Money in the same currency holding d rounded to scale.
func (m Money) WithAmount(d decimal.Decimal) Money {
	return Money{amount: Round(d, m.scale), currency: m.currency, scale: m.scale}
}

// SameCurrency reports whether both values share a currency.
func (m Money) SameCurrency(other Money) bool {
	return m.currency == other.currency
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return m.WithAmount(m.amount.Add(other.amount)), nil
}

// Sub returns m - other.
func (m Money) Sub(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return m.WithAmount(m.amount.Sub(other.amount)), nil
}

// Cmp compares the amounts of two values in the same currency.
func (m Money) Cmp(other Money) (int, error) {
	if !m.SameCurrency(other) {
		return 0, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports whether both values have the same currency and amount.
func (m Money) Equal(other Money) bool {
	return m.SameCurrency(other) && m.amount.Equal(other.amount)
}

// Fixed renders the amount with exactly scale fraction digits.
func (m Money) Fixed() string {
	return m.amount.StringFixed(m.scale)
}

func (m Money) String() string {
	if m.currency == "" {
		return m.Fixed()
	}
	return m.Fixed() + " " + m.currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as a fixed-scale string to avoid float drift.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Fixed(), Currency: m.currency})
}

// UnmarshalJSON decodes {"amount":"10.00","currency":"CAD"}.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
