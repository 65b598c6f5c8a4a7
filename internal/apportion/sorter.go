package apportion

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountableItem is the per-call projection of a leaf used for ranking.
type DiscountableItem struct {
	GUID    string
	SkuCode string
	Amount  decimal.Decimal
}

// SortByPriceSku returns a copy of items ranked by amount, then SKU code, then
// GUID, all descending. The first item is the first to absorb a residual.
func SortByPriceSku(items []DiscountableItem) []DiscountableItem {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, compareByPriceSku)
	return sorted
}

func compareByPriceSku(a, b DiscountableItem) int {
	if c := b.Amount.Cmp(a.Amount); c != 0 {
		return c
	}
	if c := strings.Compare(b.SkuCode, a.SkuCode); c != 0 {
		return c
	}
	return strings.Compare(b.GUID, a.GUID)
}
