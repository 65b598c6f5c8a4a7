package tax

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// Result accumulates the taxes of one calculation. It is not safe for concurrent
// mutation and is not persisted.
type Result struct {
	zero         money.Money
	documentID   string
	inclusive    bool
	inclusiveSet bool

	subtotal              decimal.Decimal
	beforeTaxSubtotal     decimal.Decimal
	beforeTaxShippingCost decimal.Decimal
	totalItemTax          decimal.Decimal
	shippingTax           decimal.Decimal
	byCategory            map[string]decimal.Decimal
	byItem                map[string]decimal.Decimal
}

// NewResult creates an empty result in the given currency with a fresh document id.
func NewResult(currency string) (*Result, error) {
	zero, err := money.Zero(currency)
	if err != nil {
		return nil, err
	}
	return &Result{
		zero:                  zero,
		documentID:            uuid.NewString(),
		subtotal:              decimal.Zero,
		beforeTaxSubtotal:     decimal.Zero,
		beforeTaxShippingCost: decimal.Zero,
		totalItemTax:          decimal.Zero,
		shippingTax:           decimal.Zero,
		byCategory:            make(map[string]decimal.Decimal),
		byItem:                make(map[string]decimal.Decimal),
	}, nil
}

func (r *Result) Currency() string   { return r.zero.Currency() }
func (r *Result) DocumentID() string { return r.documentID }

// TaxInclusive reports whether the document was priced tax-inclusive.
func (r *Result) TaxInclusive() bool { return r.inclusive }

func (r *Result) Subtotal() money.Money          { return r.zero.WithAmount(r.subtotal) }
func (r *Result) BeforeTaxSubtotal() money.Money { return r.zero.WithAmount(r.beforeTaxSubtotal) }
func (r *Result) BeforeTaxShippingCost() money.Money {
	return r.zero.WithAmount(r.beforeTaxShippingCost)
}
func (r *Result) TotalItemTax() money.Money { return r.zero.WithAmount(r.totalItemTax) }
func (r *Result) ShippingTax() money.Money  { return r.zero.WithAmount(r.shippingTax) }

// TotalTaxes is item tax plus shipping tax.
func (r *Result) TotalTaxes() money.Money {
	return r.zero.WithAmount(r.totalItemTax.Add(r.shippingTax))
}

// TaxesByCategory returns tax per rate name, shipping included.
func (r *Result) TaxesByCategory() map[string]money.Money {
	return r.amounts(r.byCategory)
}

// ItemTax returns the tax of one item, zero when unknown.
func (r *Result) ItemTax(guid string) money.Money {
	return r.zero.WithAmount(r.byItem[guid])
}

// ItemTaxes returns tax per item GUID.
func (r *Result) ItemTaxes() map[string]money.Money {
	return r.amounts(r.byItem)
}

func (r *Result) amounts(src map[string]decimal.Decimal) map[string]money.Money {
	out := make(map[string]money.Money, len(src))
	for k, v := range src {
		out[k] = r.zero.WithAmount(v)
	}
	return out
}

// setInclusive records the document's pricing mode; it may only be set once.
func (r *Result) setInclusive(inclusive bool) error {
	if r.inclusiveSet && r.inclusive != inclusive {
		return ErrMixedInclusivity
	}
	r.inclusive = inclusive
	r.inclusiveSet = true
	return nil
}

func (r *Result) addItem(item TaxableItem, tax itemTax) {
	r.subtotal = r.subtotal.Add(item.Price)
	r.beforeTaxSubtotal = r.beforeTaxSubtotal.Add(tax.PriceBeforeTax)
	r.totalItemTax = r.totalItemTax.Add(tax.Total)
	r.byItem[item.GUID] = r.byItem[item.GUID].Add(tax.Total)
	r.addCategories(tax.ByCategory)
}

func (r *Result) addShipping(tax itemTax) {
	r.beforeTaxShippingCost = r.beforeTaxShippingCost.Add(tax.PriceBeforeTax)
	r.shippingTax = r.shippingTax.Add(tax.Total)
	r.addCategories(tax.ByCategory)
}

func (r *Result) addCategories(src map[string]decimal.Decimal) {
	for name, amount := range src {
		r.byCategory[name] = r.byCategory[name].Add(amount)
	}
}

type resultJSON struct {
	DocumentID            string            `json:"documentId"`
	Currency              string            `json:"currency"`
	TaxInclusive          bool              `json:"taxInclusive"`
	Subtotal              string            `json:"subtotal"`
	BeforeTaxSubtotal     string            `json:"beforeTaxSubtotal"`
	BeforeTaxShippingCost string            `json:"beforeTaxShippingCost"`
	TotalItemTax          string            `json:"totalItemTax"`
	ShippingTax           string            `json:"shippingTax"`
	TotalTaxes            string            `json:"totalTaxes"`
	TaxesByCategory       map[string]string `json:"taxesByCategory"`
	ItemTaxes             map[string]string `json:"itemTaxes"`
}

// MarshalJSON renders amounts as fixed-scale strings.
func (r *Result) MarshalJSON() ([]byte, error) {
	fixed := func(src map[string]decimal.Decimal) map[string]string {
		out := make(map[string]string, len(src))
		for k, v := range src {
			out[k] = r.zero.WithAmount(v).Fixed()
		}
		return out
	}
	return json.Marshal(resultJSON{
		DocumentID:            r.documentID,
		Currency:              r.Currency(),
		TaxInclusive:          r.inclusive,
		Subtotal:              r.Subtotal().Fixed(),
		BeforeTaxSubtotal:     r.BeforeTaxSubtotal().Fixed(),
		BeforeTaxShippingCost: r.BeforeTaxShippingCost().Fixed(),
		TotalItemTax:          r.TotalItemTax().Fixed(),
		ShippingTax:           r.ShippingTax().Fixed(),
		TotalTaxes:            r.TotalTaxes().Fixed(),
		TaxesByCategory:       fixed(r.byCategory),
		ItemTaxes:             fixed(r.byItem),
	})
}
