package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestScaleOf(t *testing.T) {
	cases := map[string]int32{"CAD": 2, "usd": 2, "GBP": 2, "JPY": 0, " eur ": 2}
	for code, want := range cases {
		got, err := ScaleOf(code)
		require.NoError(t, err, code)
		require.Equal(t, want, got, code)
	}

	_, err := ScaleOf("NOPE")
	require.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestNewRoundsHalfUp(t *testing.T) {
	m, err := New(decimal.RequireFromString("3.335"), "CAD")
	require.NoError(t, err)
	require.Equal(t, "3.34", m.Fixed())
	require.Equal(t, "CAD", m.Currency())

	yen, err := New(decimal.RequireFromString("99.5"), "jpy")
	require.NoError(t, err)
	require.Equal(t, "100", yen.Fixed())
	require.Equal(t, "JPY", yen.Currency())
}

func TestAddSubRequireSameCurrency(t *testing.T) {
	a := MustParse("10.00", "CAD")
	b := MustParse("0.01", "CAD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, "10.01 CAD", sum.String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	require.Equal(t, "9.99", diff.Fixed())

	_, err = a.Add(MustParse("1", "USD"))
	require.True(t, errors.Is(err, ErrCurrencyMismatch))

	_, err = a.Cmp(MustParse("1", "USD"))
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestZeroValueIsUnset(t *testing.T) {
	var m Money
	require.False(t, m.IsSet())
	require.True(t, m.IsZero())

	z, err := Zero("GBP")
	require.NoError(t, err)
	require.True(t, z.IsSet())
	require.Equal(t, "0.00", z.Fixed())
}

func TestJSONUsesFixedScale(t *testing.T) {
	raw, err := json.Marshal(MustParse("5", "CAD"))
	require.NoError(t, err)
	require.JSONEq(t, `{"amount":"5.00","currency":"CAD"}`, string(raw))

	var decoded Money
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"4.999","currency":"usd"}`), &decoded))
	require.True(t, decoded.Equal(MustParse("5.00", "USD")))

	err = json.Unmarshal([]byte(`{"amount":"1","currency":"ZZZ"}`), &decoded)
	require.ErrorIs(t, err, ErrUnknownCurrency)
}
