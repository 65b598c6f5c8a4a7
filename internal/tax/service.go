package tax

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/apportion"
	"github.com/noah-isme/toko-pricing/internal/money"
)

// Request holds the inputs of one tax calculation.
type Request struct {
	StoreCode    string
	Origin       *Address
	Destination  *Address
	ShippingCost money.Money
	Items        map[ShoppingItem]PricingSnapshot
	// Discount is the cart-level discount to spread over the taxable items.
	Discount  money.Money
	Operation OperationContext
}

// ServiceDeps wires the collaborators of Service.
type ServiceDeps struct {
	Resolver  RateResolver
	Stores    StoreTaxCodes
	Discounts DiscountApportioner
}

// Service computes item and shipping taxes. It holds no per-call state.
type Service struct {
	resolver  RateResolver
	stores    StoreTaxCodes
	discounts DiscountApportioner
}

// NewService validates deps. Discounts defaults to apportion.NewCalculator().
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Resolver == nil {
		return nil, errors.New("tax: rate resolver is required")
	}
	if deps.Stores == nil {
		return nil, errors.New("tax: store tax code lookup is required")
	}
	if deps.Discounts == nil {
		deps.Discounts = apportion.NewCalculator()
	}
	return &Service{resolver: deps.Resolver, stores: deps.Stores, discounts: deps.Discounts}, nil
}

type taxedEntry struct {
	item     TaxableItem
	tax      itemTax
	resolved bool
	desc     RateDescriptor
}

// CalculateTaxesAndAddToResult taxes the request's items and shipping and adds
// the amounts to acc. A request without origin or destination leaves acc
// untouched. acc is only modified when the whole calculation succeeds.
func (s *Service) CalculateTaxesAndAddToResult(ctx context.Context, acc *Result, req Request) (*Result, error) {
	if acc == nil {
		return nil, fmt.Errorf("%w: result is required", ErrInvalidParameter)
	}
	storeCode := strings.TrimSpace(req.StoreCode)
	if storeCode == "" {
		return nil, fmt.Errorf("%w: store code is required", ErrInvalidParameter)
	}
	if req.Origin == nil || req.Destination == nil {
		return acc, nil
	}

	codes, err := s.stores.ActiveTaxCodes(ctx, storeCode)
	if err != nil {
		return nil, fmt.Errorf("tax: load tax codes for store %s: %w", storeCode, err)
	}
	active := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		active[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}

	container, err := s.buildContainer(acc, req, active)
	if err != nil {
		return nil, err
	}

	op := req.Operation
	op.StoreCode = storeCode
	op.Currency = container.Currency
	op.Origin = container.Origin
	op.Destination = container.Destination
	if op.DocumentID == "" {
		op.DocumentID = acc.DocumentID()
	}
	if op.JournalType == "" {
		op.JournalType = JournalPurchase
	}

	scale := acc.zero.Scale()
	entries := make([]taxedEntry, 0, len(container.Items)+1)
	for _, item := range append(slices.Clone(container.Items), container.Shipping) {
		entry, err := s.taxEntry(ctx, item, op, scale)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	inclusive, inclusiveSet := acc.inclusive, acc.inclusiveSet
	for _, entry := range entries {
		if !entry.resolved {
			continue
		}
		if inclusiveSet && inclusive != entry.desc.Inclusive {
			return nil, fmt.Errorf("%w: item %s", ErrMixedInclusivity, entry.item.GUID)
		}
		inclusive, inclusiveSet = entry.desc.Inclusive, true
	}
	if inclusiveSet {
		if err := acc.setInclusive(inclusive); err != nil {
			return nil, err
		}
	}

	for _, entry := range entries {
		if entry.item.Shipping {
			acc.addShipping(entry.tax)
			continue
		}
		acc.addItem(entry.item, entry.tax)
	}
	return acc, nil
}

func (s *Service) taxEntry(ctx context.Context, item TaxableItem, op OperationContext, scale int32) (taxedEntry, error) {
	if !item.TaxCodeActive || item.TaxablePrice().IsZero() {
		return taxedEntry{item: item, tax: untaxed(item)}, nil
	}
	desc, err := s.resolver.Resolve(ctx, item, op)
	if err != nil {
		return taxedEntry{}, fmt.Errorf("%w: item %s (%s): %w", ErrRateLookup, item.GUID, item.TaxCode, err)
	}
	computed, err := computeItemTax(item, desc, scale)
	if err != nil {
		return taxedEntry{}, err
	}
	return taxedEntry{item: item, tax: computed, resolved: true, desc: desc}, nil
}

// buildContainer apportions the cart discount over every priced leaf, keeps the
// shippable ones as taxable entries and appends the shipping entry. Shares of
// non-shippable lines are dropped rather than moved onto taxable lines.
func (s *Service) buildContainer(acc *Result, req Request, active map[string]struct{}) (TaxableItemContainer, error) {
	currency := acc.Currency()
	container := TaxableItemContainer{
		Currency:    currency,
		Origin:      req.Origin,
		Destination: req.Destination,
	}

	lines := make([]ShoppingItem, 0, len(req.Items))
	prices := make(map[apportion.LineItem]money.Money, len(req.Items))
	for item, snapshot := range req.Items {
		if item == nil || item.IsBundle() || !item.HasPrice() {
			continue
		}
		price := snapshot.PriceAfterCatalogPromotions
		if !price.IsSet() {
			price = acc.zero
		}
		if price.Currency() != currency {
			return container, fmt.Errorf("%w: item %s: %w", ErrInvalidParameter, item.GUID(), money.ErrCurrencyMismatch)
		}
		prices[item] = price
		if item.IsShippable() {
			lines = append(lines, item)
		}
	}
	slices.SortFunc(lines, func(a, b ShoppingItem) int { return strings.Compare(a.GUID(), b.GUID()) })

	discount := req.Discount
	if !discount.IsSet() {
		discount = acc.zero
	}
	if discount.Currency() != currency {
		return container, fmt.Errorf("%w: discount: %w", ErrInvalidParameter, money.ErrCurrencyMismatch)
	}
	discounts, err := s.discounts.Apportion(discount, prices)
	if err != nil {
		return container, fmt.Errorf("tax: apportion discount: %w", err)
	}

	container.Items = make([]TaxableItem, 0, len(lines))
	for _, item := range lines {
		code := strings.ToUpper(strings.TrimSpace(item.TaxCode()))
		_, isActive := active[code]
		itemDiscount := decimal.Zero
		if d, ok := discounts[item.GUID()]; ok {
			itemDiscount = d.Amount()
		}
		container.Items = append(container.Items, TaxableItem{
			GUID:          item.GUID(),
			ItemCode:      item.SkuCode(),
			TaxCode:       code,
			Quantity:      item.Quantity(),
			Price:         prices[item].Amount(),
			Discount:      itemDiscount,
			TaxCodeActive: isActive,
		})
	}

	shipping := req.ShippingCost
	if !shipping.IsSet() {
		shipping = acc.zero
	}
	if shipping.Currency() != currency {
		return container, fmt.Errorf("%w: shipping cost: %w", ErrInvalidParameter, money.ErrCurrencyMismatch)
	}
	if shipping.IsNegative() {
		return container, fmt.Errorf("%w: negative shipping cost %s", ErrInvalidParameter, shipping)
	}
	_, shippingActive := active[TaxCodeShipping]
	container.Shipping = TaxableItem{
		GUID:          ShippingGUID,
		ItemCode:      TaxCodeShipping,
		TaxCode:       TaxCodeShipping,
		Quantity:      1,
		Price:         shipping.Amount(),
		Discount:      decimal.Zero,
		TaxCodeActive: shippingActive,
		Shipping:      true,
	}
	return container, nil
}
