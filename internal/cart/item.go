package cart

import "github.com/noah-isme/toko-pricing/internal/apportion"

// Item is a read-only cart line. A line with constituents is a bundle.
type Item struct {
	ID           string
	SKU          string
	Qty          int
	Tax          string
	Priced       bool
	Shippable    bool
	Discountable bool
	Children     []*Item
}

func (i *Item) GUID() string    { return i.ID }
func (i *Item) SkuCode() string { return i.SKU }
func (i *Item) Quantity() int   { return i.Qty }
func (i *Item) TaxCode() string { return i.Tax }

func (i *Item) HasPrice() bool       { return i.Priced }
func (i *Item) IsShippable() bool    { return i.Shippable }
func (i *Item) IsDiscountable() bool { return i.Discountable }
func (i *Item) IsBundle() bool       { return len(i.Children) > 0 }

// Constituents returns the bundle's children, nil for a leaf.
func (i *Item) Constituents() []apportion.LineItem {
	if len(i.Children) == 0 {
		return nil
	}
	out := make([]apportion.LineItem, len(i.Children))
	for idx, child := range i.Children {
		out[idx] = child
	}
	return out
}
