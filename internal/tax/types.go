package tax

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/apportion"
	"github.com/noah-isme/toko-pricing/internal/money"
)

// TaxCodeShipping is the tax code of the synthetic shipping entry.
const TaxCodeShipping = "SHIPPING"

// ShippingGUID identifies the shipping entry in per-item breakdowns.
const ShippingGUID = "shipping"

// Journal types understood by resolvers.
const (
	JournalPurchase = "PURCHASE"
	JournalReturn   = "RETURN"
)

// Address is the part of a postal address a rate resolver needs.
type Address struct {
	Street1    string `json:"street1,omitempty"`
	City       string `json:"city,omitempty"`
	SubCountry string `json:"subCountry,omitempty"`
	ZipCode    string `json:"zipCode,omitempty"`
	Country    string `json:"country" validate:"required,len=2"`
}

// ShoppingItem extends a line item with what tax calculation needs.
type ShoppingItem interface {
	apportion.LineItem
	HasPrice() bool
	IsShippable() bool
	Quantity() int
	TaxCode() string
}

// PricingSnapshot carries the prices of an item at calculation time.
type PricingSnapshot struct {
	// PriceAfterCatalogPromotions is the line amount before cart-level discounts.
	PriceAfterCatalogPromotions money.Money
	// ListPrice is informational.
	ListPrice money.Money
}

// OperationContext describes the document being taxed.
type OperationContext struct {
	StoreCode    string
	Currency     string
	JournalType  string
	CustomerCode string
	DocumentID   string
	Origin       *Address
	Destination  *Address
}

// TaxableItem is one entry of a taxable-item container.
type TaxableItem struct {
	GUID          string
	ItemCode      string
	TaxCode       string
	Quantity      int
	Price         decimal.Decimal
	Discount      decimal.Decimal
	TaxCodeActive bool
	Shipping      bool
}

// TaxablePrice is the amount tax is computed on.
func (t TaxableItem) TaxablePrice() decimal.Decimal {
	p := t.Price.Sub(t.Discount)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// TaxableItemContainer groups the entries of one calculation.
type TaxableItemContainer struct {
	Currency    string
	Origin      *Address
	Destination *Address
	Items       []TaxableItem
	Shipping    TaxableItem
}

// Rate is a named tax rate expressed as a fraction, e.g. 0.05.
type Rate struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"rate"`
}

// RateDescriptor is what a resolver returns for one item.
type RateDescriptor struct {
	Inclusive bool   `json:"inclusive"`
	Rates     []Rate `json:"rates"`
}

// Sum is the combined rate.
func (d RateDescriptor) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, r := range d.Rates {
		total = total.Add(r.Value)
	}
	return total
}

// RateResolver looks up the rates that apply to a taxable item.
type RateResolver interface {
	Resolve(ctx context.Context, item TaxableItem, op OperationContext) (RateDescriptor, error)
}

// StoreTaxCodes returns the tax codes enabled for a store.
type StoreTaxCodes interface {
	ActiveTaxCodes(ctx context.Context, storeCode string) ([]string, error)
}

// DiscountApportioner spreads a discount over line items.
type DiscountApportioner interface {
	Apportion(discount money.Money, prices map[apportion.LineItem]money.Money) (apportion.Result, error)
}
