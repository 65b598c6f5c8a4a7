package tax

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/apportion"
)

var one = decimal.NewFromInt(1)

// itemTax is the computed tax of a single taxable entry.
type itemTax struct {
	Total          decimal.Decimal
	ByCategory     map[string]decimal.Decimal
	PriceBeforeTax decimal.Decimal
}

// untaxed is the outcome for entries whose tax code is inactive or that have nothing to tax.
func untaxed(item TaxableItem) itemTax {
	return itemTax{Total: decimal.Zero, ByCategory: map[string]decimal.Decimal{}, PriceBeforeTax: item.Price}
}

// computeItemTax applies desc to the discounted price of item. Inclusive prices
// already contain the tax, so the before-tax price is the price minus the tax.
func computeItemTax(item TaxableItem, desc RateDescriptor, scale int32) (itemTax, error) {
	for _, r := range desc.Rates {
		if r.Value.IsNegative() {
			return itemTax{}, fmt.Errorf("%w: negative rate %s for %s", ErrInvalidParameter, r.Value, r.Name)
		}
	}

	combined := desc.Sum()
	taxable := item.TaxablePrice()
	out := untaxed(item)
	if combined.IsZero() || taxable.IsZero() {
		for _, r := range desc.Rates {
			out.ByCategory[r.Name] = decimal.Zero
		}
		return out, nil
	}

	if desc.Inclusive {
		out.Total = taxable.Mul(combined).DivRound(one.Add(combined), scale)
		out.PriceBeforeTax = item.Price.Sub(out.Total)
	} else {
		out.Total = taxable.Mul(combined).Round(scale)
	}

	split, err := splitByRate(out.Total, desc.Rates, combined, scale)
	if err != nil {
		return itemTax{}, err
	}
	out.ByCategory = split
	return out, nil
}

// splitByRate spreads total over the rates in proportion to their values so the
// categories add up to total exactly. Rates sharing a name are merged.
func splitByRate(total decimal.Decimal, rates []Rate, combined decimal.Decimal, scale int32) (map[string]decimal.Decimal, error) {
	var pc apportion.ProportionCalculator
	shares := make([]decimal.Decimal, len(rates))
	allocated := decimal.Zero
	for i, r := range rates {
		share, err := pc.Proportion(r.Value, combined, total, scale)
		if err != nil {
			return nil, err
		}
		shares[i] = share
		allocated = allocated.Add(share)
	}

	order := make([]int, len(rates))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		if c := rates[b].Value.Cmp(rates[a].Value); c != 0 {
			return c
		}
		return strings.Compare(rates[b].Name, rates[a].Name)
	})

	residual := total.Sub(allocated)
	for _, i := range order {
		if residual.IsZero() {
			break
		}
		adj := pc.ErrorAdjustment(total, shares[i], residual)
		shares[i] = shares[i].Add(adj)
		residual = residual.Sub(adj)
	}
	if !residual.IsZero() {
		return nil, fmt.Errorf("%w: tax split left %s", apportion.ErrUnreconciled, residual)
	}

	out := make(map[string]decimal.Decimal, len(rates))
	for i, r := range rates {
		out[r.Name] = out[r.Name].Add(shares[i])
	}
	return out, nil
}
