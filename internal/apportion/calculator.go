package apportion

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// Result maps a leaf item GUID to its apportioned amount.
type Result map[string]money.Money

// Total sums the apportioned amounts.
func (r Result) Total() decimal.Decimal {
	total := decimal.Zero
	for _, m := range r {
		total = total.Add(m.Amount())
	}
	return total
}

// Calculator spreads one amount across line items in proportion to their prices
// so that the parts add up exactly to the amount at the currency scale.
type Calculator struct {
	proportion ProportionCalculator
}

// NewCalculator returns a stateless calculator safe for concurrent use.
func NewCalculator() Calculator {
	return Calculator{}
}

// Apportion distributes discount across the discountable leaves reachable from
// the keys of prices. Bundles are flattened; bundles themselves and
// non-discountable items receive no entry.
func (c Calculator) Apportion(discount money.Money, prices map[LineItem]money.Money) (Result, error) {
	if !discount.IsSet() {
		return nil, fmt.Errorf("%w: discount currency is required", ErrInvalidArgument)
	}
	if discount.IsNegative() {
		return nil, fmt.Errorf("%w: negative discount %s", ErrInvalidArgument, discount)
	}

	items, err := discountableItems(discount, prices)
	if err != nil {
		return nil, err
	}

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount)
	}
	if discount.Amount().GreaterThan(sum) {
		return nil, fmt.Errorf("%w: %s over %s", ErrDiscountExceedsTotal, discount.Fixed(), sum.StringFixed(discount.Scale()))
	}

	result := make(Result, len(items))
	switch {
	case len(items) == 0:
		return result, nil
	case discount.IsZero():
		for _, item := range items {
			result[item.GUID] = discount.WithAmount(decimal.Zero)
		}
		return result, nil
	case len(items) == 1:
		result[items[0].GUID] = discount
		return result, nil
	}

	shares, err := c.shares(items, sum, discount)
	if err != nil {
		return nil, err
	}
	for guid, share := range shares {
		result[guid] = discount.WithAmount(share)
	}
	return result, nil
}

func (c Calculator) shares(items []DiscountableItem, sum decimal.Decimal, discount money.Money) (map[string]decimal.Decimal, error) {
	scale := discount.Scale()
	shares := make(map[string]decimal.Decimal, len(items))
	allocated := decimal.Zero
	for _, item := range items {
		share, err := c.proportion.Proportion(item.Amount, sum, discount.Amount(), scale)
		if err != nil {
			return nil, err
		}
		shares[item.GUID] = share
		allocated = allocated.Add(share)
	}

	residual := discount.Amount().Sub(allocated)
	for _, item := range SortByPriceSku(items) {
		if residual.IsZero() {
			break
		}
		adjustment := c.proportion.ErrorAdjustment(item.Amount, shares[item.GUID], residual)
		if adjustment.IsZero() {
			continue
		}
		shares[item.GUID] = shares[item.GUID].Add(adjustment)
		residual = residual.Sub(adjustment)
	}
	if !residual.IsZero() {
		return nil, fmt.Errorf("%w: %s left over", ErrUnreconciled, residual.String())
	}
	return shares, nil
}

// discountableItems collects the priced leaves, deduplicated by GUID, in a
// traversal order that does not depend on map iteration.
func discountableItems(discount money.Money, prices map[LineItem]money.Money) ([]DiscountableItem, error) {
	keys := make([]LineItem, 0, len(prices))
	byGUID := make(map[string]money.Money, len(prices))
	for item, price := range prices {
		if item == nil {
			continue
		}
		keys = append(keys, item)
		byGUID[item.GUID()] = price
	}
	slices.SortFunc(keys, func(a, b LineItem) int {
		if c := strings.Compare(a.GUID(), b.GUID()); c != 0 {
			return c
		}
		return strings.Compare(a.SkuCode(), b.SkuCode())
	})

	leaves := Collect(keys)
	items := make([]DiscountableItem, 0, len(leaves))
	seen := make(map[string]struct{}, len(leaves))
	for _, leaf := range leaves {
		guid := leaf.GUID()
		if _, dup := seen[guid]; dup {
			continue
		}
		seen[guid] = struct{}{}

		price, ok := prices[leaf]
		if !ok {
			price, ok = byGUID[guid]
		}
		if !ok {
			return nil, fmt.Errorf("%w: no price for item %s", ErrInvalidArgument, guid)
		}
		if !price.SameCurrency(discount) {
			return nil, fmt.Errorf("%w: item %s: %w", ErrInvalidArgument, guid, money.ErrCurrencyMismatch)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("%w: item %s has negative price %s", ErrInvalidArgument, guid, price)
		}
		items = append(items, DiscountableItem{GUID: guid, SkuCode: leaf.SkuCode(), Amount: price.Amount()})
	}
	return items, nil
}
