package apportion

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/money"
)

type stubItem struct {
	guid         string
	sku          string
	discountable bool
	children     []LineItem
}

func (s *stubItem) GUID() string             { return s.guid }
func (s *stubItem) SkuCode() string          { return s.sku }
func (s *stubItem) IsBundle() bool           { return len(s.children) > 0 }
func (s *stubItem) Constituents() []LineItem { return s.children }
func (s *stubItem) IsDiscountable() bool     { return s.discountable }

func leaf(guid, sku string) *stubItem {
	return &stubItem{guid: guid, sku: sku, discountable: true}
}

func cad(amount string) money.Money { return money.MustParse(amount, "CAD") }

func fixed(result Result) map[string]string {
	out := make(map[string]string, len(result))
	for guid, m := range result {
		out[guid] = m.Fixed()
	}
	return out
}

func TestApportionSplitsProportionally(t *testing.T) {
	prices := map[LineItem]money.Money{
		leaf("a", "A"): cad("20.00"),
		leaf("b", "B"): cad("30.00"),
		leaf("c", "C"): cad("40.00"),
		leaf("d", "D"): cad("10.00"),
	}

	result, err := NewCalculator().Apportion(cad("10.00"), prices)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "2.00", "b": "3.00", "c": "4.00", "d": "1.00"}, fixed(result))
}

func TestApportionFullDiscountEqualsPrices(t *testing.T) {
	prices := map[LineItem]money.Money{
		leaf("a", "A"): cad("20.00"),
		leaf("b", "B"): cad("30.00"),
		leaf("c", "C"): cad("40.00"),
		leaf("d", "D"): cad("10.00"),
	}

	result, err := NewCalculator().Apportion(cad("100.00"), prices)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "20.00", "b": "30.00", "c": "40.00", "d": "10.00"}, fixed(result))
}

func TestApportionZeroPricedItemGetsNothing(t *testing.T) {
	prices := map[LineItem]money.Money{
		leaf("a", "A"): cad("0.00"),
		leaf("b", "B"): cad("10.00"),
		leaf("c", "C"): cad("10.00"),
		leaf("d", "D"): cad("10.00"),
	}

	result, err := NewCalculator().Apportion(cad("10.00"), prices)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "0.00", "b": "3.33", "c": "3.33", "d": "3.34"}, fixed(result))
}

func TestApportionPositiveResidualGoesToGreatestSku(t *testing.T) {
	prices := map[LineItem]money.Money{
		leaf("g1", "1"): cad("10.00"),
		leaf("g2", "2"): cad("10.00"),
		leaf("g3", "3"): cad("10.00"),
	}

	result, err := NewCalculator().Apportion(cad("10.00"), prices)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"g1": "3.33", "g2": "3.33", "g3": "3.34"}, fixed(result))
}

func TestApportionNegativeResidual(t *testing.T) {
	prices := map[LineItem]money.Money{
		leaf("g1", "1"): cad("10.00"),
		leaf("g2", "2"): cad("10.00"),
	}

	result, err := NewCalculator().Apportion(cad("9.99"), prices)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"g1": "5.00", "g2": "4.99"}, fixed(result))
}

func TestApportionManyItemsWithSmallOne(t *testing.T) {
	prices := map[LineItem]money.Money{leaf("small", "1"): cad("0.02")}
	for i := 2; i <= 13; i++ {
		sku := fmt.Sprintf("%d", i)
		prices[leaf("g"+sku, sku)] = cad("10.00")
	}

	result, err := NewCalculator().Apportion(cad("59.95"), prices)
	require.NoError(t, err)
	require.Len(t, result, 13)
	require.Equal(t, "0.01", result["small"].Fixed())
	for i := 2; i <= 13; i++ {
		sku := fmt.Sprintf("%d", i)
		want := "5.00"
		if sku == "9" {
			want = "4.94"
		}
		require.Equal(t, want, result["g"+sku].Fixed(), "sku %s", sku)
	}
	require.True(t, result.Total().Equal(decimal.RequireFromString("59.95")))
}

func TestApportionDuplicateSkusKeyedByGUID(t *testing.T) {
	prices := map[LineItem]money.Money{
		leaf("first", "SAME"):  cad("0.02"),
		leaf("second", "SAME"): cad("0.02"),
	}

	result, err := NewCalculator().Apportion(cad("0.02"), prices)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"first": "0.01", "second": "0.01"}, fixed(result))
}

func TestApportionSingleItemTakesAll(t *testing.T) {
	result, err := NewCalculator().Apportion(cad("7.77"), map[LineItem]money.Money{leaf("only", "X"): cad("10.00")})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"only": "7.77"}, fixed(result))
}

func TestApportionZeroDiscount(t *testing.T) {
	prices := map[LineItem]money.Money{
		leaf("a", "A"): cad("5.00"),
		leaf("b", "B"): cad("6.00"),
	}

	result, err := NewCalculator().Apportion(cad("0"), prices)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "0.00", "b": "0.00"}, fixed(result))
}

func TestApportionEmptyInput(t *testing.T) {
	result, err := NewCalculator().Apportion(cad("0"), nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, result)
}

func TestApportionRejectsDiscountOverTotal(t *testing.T) {
	prices := map[LineItem]money.Money{
		leaf("a", "A"): cad("5.00"),
		leaf("b", "B"): cad("5.00"),
	}

	_, err := NewCalculator().Apportion(cad("10.01"), prices)
	require.ErrorIs(t, err, ErrDiscountExceedsTotal)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewCalculator().Apportion(cad("1.00"), nil)
	require.ErrorIs(t, err, ErrDiscountExceedsTotal)
}

func TestApportionRejectsBadInput(t *testing.T) {
	calc := NewCalculator()

	_, err := calc.Apportion(cad("-1.00"), map[LineItem]money.Money{leaf("a", "A"): cad("5.00")})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = calc.Apportion(money.Money{}, map[LineItem]money.Money{leaf("a", "A"): cad("5.00")})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = calc.Apportion(cad("1.00"), map[LineItem]money.Money{leaf("a", "A"): money.MustParse("5.00", "USD")})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, err, money.ErrCurrencyMismatch)

	_, err = calc.Apportion(cad("1.00"), map[LineItem]money.Money{leaf("a", "A"): cad("-5.00")})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestApportionFlattensBundles(t *testing.T) {
	c1 := leaf("c1", "C1")
	c2 := leaf("c2", "C2")
	excluded := &stubItem{guid: "c3", sku: "C3"}
	bundle := &stubItem{guid: "bundle", sku: "B", children: []LineItem{c1, c2, excluded}}
	prices := map[LineItem]money.Money{
		bundle:   cad("45.00"),
		c1:       cad("10.00"),
		c2:       cad("30.00"),
		excluded: cad("5.00"),
	}

	result, err := NewCalculator().Apportion(cad("20.00"), prices)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"c1": "5.00", "c2": "15.00"}, fixed(result))
}

func TestApportionRequiresLeafPrices(t *testing.T) {
	c1 := leaf("c1", "C1")
	bundle := &stubItem{guid: "bundle", sku: "B", children: []LineItem{c1}}

	_, err := NewCalculator().Apportion(cad("1.00"), map[LineItem]money.Money{bundle: cad("10.00")})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestApportionConservesAndStaysWithinPrices(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	calc := NewCalculator()

	for round := 0; round < 200; round++ {
		prices := make(map[LineItem]money.Money)
		total := decimal.Zero
		n := 2 + rng.Intn(12)
		for i := 0; i < n; i++ {
			cents := rng.Int63n(5000)
			price := decimal.New(cents, -2)
			total = total.Add(price)
			prices[leaf(fmt.Sprintf("g%02d", i), fmt.Sprintf("S%d", rng.Intn(4)))] = cad(price.String())
		}
		discount := decimal.New(rng.Int63n(total.Shift(2).IntPart()+1), -2)

		first, err := calc.Apportion(cad(discount.String()), prices)
		require.NoError(t, err)
		second, err := calc.Apportion(cad(discount.String()), prices)
		require.NoError(t, err)
		require.Equal(t, fixed(first), fixed(second))

		require.True(t, first.Total().Equal(discount), "round %d: %s != %s", round, first.Total(), discount)
		for item, price := range prices {
			share := first[item.GUID()].Amount()
			require.False(t, share.IsNegative())
			require.True(t, share.LessThanOrEqual(price.Amount()))
		}
	}
}

func TestProportion(t *testing.T) {
	var pc ProportionCalculator

	got, err := pc.Proportion(decimal.NewFromInt(1), decimal.NewFromInt(3), decimal.NewFromInt(10), 2)
	require.NoError(t, err)
	require.Equal(t, "3.33", got.StringFixed(2))

	got, err = pc.Proportion(decimal.NewFromInt(1), decimal.NewFromInt(8), decimal.NewFromInt(1), 2)
	require.NoError(t, err)
	require.Equal(t, "0.13", got.StringFixed(2))

	got, err = pc.Proportion(decimal.Zero, decimal.NewFromInt(8), decimal.NewFromInt(1), 2)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = pc.Proportion(decimal.NewFromInt(1), decimal.Zero, decimal.NewFromInt(1), 2)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestErrorAdjustment(t *testing.T) {
	var pc ProportionCalculator
	d := decimal.RequireFromString

	require.True(t, pc.ErrorAdjustment(d("1"), d("1"), d("0.01")).IsZero())
	require.Equal(t, "0.99", pc.ErrorAdjustment(d("1"), d("0.01"), d("1")).StringFixed(2))
	require.Equal(t, "0.01", pc.ErrorAdjustment(d("10"), d("3.33"), d("0.01")).StringFixed(2))
	require.Equal(t, "-0.06", pc.ErrorAdjustment(d("10"), d("5"), d("-0.06")).StringFixed(2))
	require.Equal(t, "-0.01", pc.ErrorAdjustment(d("0.02"), d("0.01"), d("-0.05")).StringFixed(2))
	require.True(t, pc.ErrorAdjustment(d("0"), d("0"), d("0.01")).IsZero())
}

func TestSortByPriceSkuDoesNotMutate(t *testing.T) {
	items := []DiscountableItem{
		{GUID: "a", SkuCode: "1", Amount: decimal.NewFromInt(10)},
		{GUID: "b", SkuCode: "3", Amount: decimal.NewFromInt(10)},
		{GUID: "c", SkuCode: "2", Amount: decimal.NewFromInt(20)},
		{GUID: "e", SkuCode: "3", Amount: decimal.NewFromInt(10)},
	}

	sorted := SortByPriceSku(items)
	got := make([]string, 0, len(sorted))
	for _, item := range sorted {
		got = append(got, item.GUID)
	}
	require.Equal(t, []string{"c", "e", "b", "a"}, got)
	require.Equal(t, "a", items[0].GUID)
}

func TestCollectFlattensDepthFirst(t *testing.T) {
	inner := &stubItem{guid: "inner", children: []LineItem{leaf("x", "X"), leaf("y", "Y")}}
	outer := &stubItem{guid: "outer", children: []LineItem{leaf("w", "W"), inner, &stubItem{guid: "skip"}}}

	got := Collect([]LineItem{leaf("v", "V"), outer, leaf("z", "Z")})
	guids := make([]string, 0, len(got))
	for _, item := range got {
		guids = append(guids, item.GUID())
	}
	require.Equal(t, []string{"v", "w", "x", "y", "z"}, guids)

	require.NotNil(t, Collect(nil))
	require.Empty(t, Collect(nil))
}
