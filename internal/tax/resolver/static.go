package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/tax"
)

// Table is the file representation of a static rate table.
type Table struct {
	Jurisdictions []Jurisdiction `koanf:"jurisdictions"`
}

// Jurisdiction lists the rates per tax code for a country or sub-country.
// An empty SubCountry applies to the whole country.
type Jurisdiction struct {
	Country    string               `koanf:"country"`
	SubCountry string               `koanf:"subCountry"`
	Inclusive  bool                 `koanf:"inclusive"`
	TaxCodes   map[string][]RateRow `koanf:"taxCodes"`
}

// RateRow is one named rate, e.g. {name: GST, rate: "0.05"}.
type RateRow struct {
	Name string `koanf:"name"`
	Rate string `koanf:"rate"`
}

// LoadTable reads a YAML rate table.
func LoadTable(path string) (Table, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Table{}, fmt.Errorf("load tax rates %s: %w", path, err)
	}
	var t Table
	if err := k.Unmarshal("", &t); err != nil {
		return Table{}, fmt.Errorf("decode tax rates %s: %w", path, err)
	}
	return t, nil
}

type staticEntry struct {
	inclusive bool
	codes     map[string][]tax.Rate
}

// Static resolves rates from an in-memory table. Sub-country entries take
// precedence over country-wide ones. Safe for concurrent use.
type Static struct {
	entries map[string]staticEntry
}

// NewStatic validates t and indexes it by jurisdiction.
func NewStatic(t Table) (*Static, error) {
	s := &Static{entries: make(map[string]staticEntry, len(t.Jurisdictions))}
	for _, j := range t.Jurisdictions {
		if strings.TrimSpace(j.Country) == "" {
			return nil, fmt.Errorf("tax rates: jurisdiction without country")
		}
		key := jurisdictionKey(j.Country, j.SubCountry)
		if _, dup := s.entries[key]; dup {
			return nil, fmt.Errorf("tax rates: duplicate jurisdiction %s", key)
		}
		entry := staticEntry{inclusive: j.Inclusive, codes: make(map[string][]tax.Rate, len(j.TaxCodes))}
		for code, rows := range j.TaxCodes {
			rates := make([]tax.Rate, 0, len(rows))
			for _, row := range rows {
				value, err := decimal.NewFromString(strings.TrimSpace(row.Rate))
				if err != nil {
					return nil, fmt.Errorf("tax rates: %s %s %s: %w", key, code, row.Name, err)
				}
				if value.IsNegative() {
					return nil, fmt.Errorf("tax rates: %s %s %s: negative rate", key, code, row.Name)
				}
				rates = append(rates, tax.Rate{Name: row.Name, Value: value})
			}
			entry.codes[strings.ToUpper(code)] = rates
		}
		s.entries[key] = entry
	}
	return s, nil
}

// Resolve returns the rates of the item's tax code at the destination. A tax
// code the jurisdiction does not list is untaxed there.
func (s *Static) Resolve(_ context.Context, item tax.TaxableItem, op tax.OperationContext) (tax.RateDescriptor, error) {
	dest, err := destinationOf(op)
	if err != nil {
		return tax.RateDescriptor{}, err
	}
	entry, ok := s.entries[jurisdictionKey(dest.Country, dest.SubCountry)]
	if !ok {
		entry, ok = s.entries[jurisdictionKey(dest.Country, "")]
	}
	if !ok {
		return tax.RateDescriptor{}, fmt.Errorf("%w: %s", ErrNoRate, jurisdictionKey(dest.Country, dest.SubCountry))
	}
	rates := entry.codes[strings.ToUpper(item.TaxCode)]
	out := make([]tax.Rate, len(rates))
	copy(out, rates)
	return tax.RateDescriptor{Inclusive: entry.inclusive, Rates: out}, nil
}
