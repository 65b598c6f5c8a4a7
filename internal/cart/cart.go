package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-pricing/internal/apportion"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// ErrInvalidInput is returned when a line payload cannot be turned into an item.
var ErrInvalidInput = errors.New("cart: invalid input")

// LinePayload is the wire shape of a cart line.
type LinePayload struct {
	GUID         string        `json:"guid" validate:"required"`
	SkuCode      string        `json:"skuCode"`
	Quantity     int           `json:"quantity" validate:"gte=0"`
	Price        string        `json:"price" validate:"omitempty,numeric"`
	TaxCode      string        `json:"taxCode"`
	Discountable *bool         `json:"discountable,omitempty"`
	Shippable    *bool         `json:"shippable,omitempty"`
	HasPrice     *bool         `json:"hasPrice,omitempty"`
	Constituents []LinePayload `json:"constituents,omitempty" validate:"dive"`
}

// Line pairs an item with its price after catalog promotions.
type Line struct {
	Item  *Item
	Price money.Money
}

// Cart is an immutable set of lines in one currency. Lines holds every item,
// bundles and their constituents included; Roots only the top-level ones.
type Cart struct {
	Currency string
	Roots    []*Item
	Lines    []Line
}

// Build converts payloads into a cart. GUIDs must be unique across the tree.
func Build(currency string, payloads []LinePayload) (*Cart, error) {
	zero, err := money.Zero(currency)
	if err != nil {
		return nil, err
	}
	c := &Cart{Currency: zero.Currency()}
	seen := make(map[string]struct{})
	for _, p := range payloads {
		root, err := c.add(zero, p, seen)
		if err != nil {
			return nil, err
		}
		c.Roots = append(c.Roots, root)
	}
	return c, nil
}

func (c *Cart) add(zero money.Money, p LinePayload, seen map[string]struct{}) (*Item, error) {
	guid := strings.TrimSpace(p.GUID)
	if guid == "" {
		return nil, fmt.Errorf("%w: guid is required", ErrInvalidInput)
	}
	if _, dup := seen[guid]; dup {
		return nil, fmt.Errorf("%w: duplicate guid %s", ErrInvalidInput, guid)
	}
	seen[guid] = struct{}{}

	price := zero
	if p.Price != "" {
		parsed, err := money.Parse(p.Price, zero.Currency())
		if err != nil {
			return nil, fmt.Errorf("%w: item %s: %w", ErrInvalidInput, guid, err)
		}
		price = parsed
	}

	item := &Item{
		ID:           guid,
		SKU:          p.SkuCode,
		Qty:          p.Quantity,
		Tax:          p.TaxCode,
		Priced:       boolOr(p.HasPrice, p.Price != ""),
		Shippable:    boolOr(p.Shippable, true),
		Discountable: boolOr(p.Discountable, true),
	}
	c.Lines = append(c.Lines, Line{Item: item, Price: price})
	for _, child := range p.Constituents {
		childItem, err := c.add(zero, child, seen)
		if err != nil {
			return nil, err
		}
		item.Children = append(item.Children, childItem)
	}
	return item, nil
}

// Prices returns the priced lines keyed by item, ready for apportioning.
func (c *Cart) Prices() map[apportion.LineItem]money.Money {
	out := make(map[apportion.LineItem]money.Money, len(c.Lines))
	for _, line := range c.Lines {
		if line.Item.Priced {
			out[line.Item] = line.Price
		}
	}
	return out
}

// Snapshots returns every line with its pricing snapshot for tax calculation.
func (c *Cart) Snapshots() map[tax.ShoppingItem]tax.PricingSnapshot {
	out := make(map[tax.ShoppingItem]tax.PricingSnapshot, len(c.Lines))
	for _, line := range c.Lines {
		out[line.Item] = tax.PricingSnapshot{PriceAfterCatalogPromotions: line.Price, ListPrice: line.Price}
	}
	return out
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
