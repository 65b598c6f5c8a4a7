package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/store"
	"github.com/noah-isme/toko-pricing/internal/tax"
	"github.com/noah-isme/toko-pricing/internal/tax/resolver"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, handler http.HandlerFunc, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr, env
}

func TestApportionEndpoint(t *testing.T) {
	h := NewHandler(HandlerConfig{DefaultCurrency: "cad"})
	rr, env := do(t, h.Apportion, "/api/v1/apportionments", `{
		"discount": {"amount": "10.00"},
		"items": [
			{"guid": "a", "skuCode": "1", "price": "20.00"},
			{"guid": "b", "skuCode": "2", "price": "30.00"},
			{"guid": "c", "skuCode": "3", "price": "40.00"},
			{"guid": "d", "skuCode": "4", "price": "10.00"}
		]
	}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var got apportionResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, "CAD", got.Currency)
	require.Equal(t, map[string]string{"a": "2.00", "b": "3.00", "c": "4.00", "d": "1.00"}, got.Allocations)
}

func apportionedItems(t *testing.T) (count uint64, sum float64) {
	t.Helper()
	var m dto.Metric
	require.NoError(t, obs.ApportionedItems.Write(&m))
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}

func TestApportionEndpointFlattensBundles(t *testing.T) {
	obs.MustRegisterDomainMetrics("toko_pricing_test", prometheus.NewRegistry())
	countBefore, sumBefore := apportionedItems(t)

	h := NewHandler(HandlerConfig{DefaultCurrency: "USD"})
	rr, env := do(t, h.Apportion, "/api/v1/apportionments", `{
		"discount": {"amount": "3.00", "currency": "usd"},
		"items": [
			{"guid": "shirt", "price": "20.00"},
			{"guid": "kit", "constituents": [
				{"guid": "kit-a", "price": "10.00"},
				{"guid": "kit-b", "price": "30.00", "discountable": false}
			]}
		]
	}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var got apportionResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, map[string]string{"shirt": "2.00", "kit-a": "1.00"}, got.Allocations)

	// only the two discounted leaves are observed, not the bundle or kit-b
	count, sum := apportionedItems(t)
	require.EqualValues(t, 1, count-countBefore)
	require.InDelta(t, 2, sum-sumBefore, 1e-9)
}

func TestApportionEndpointErrors(t *testing.T) {
	h := NewHandler(HandlerConfig{DefaultCurrency: "CAD"})

	rr, env := do(t, h.Apportion, "/api/v1/apportionments", `{"discount":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)

	rr, env = do(t, h.Apportion, "/api/v1/apportionments", `{"discount":{"amount":"ten"},"items":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)
	require.Contains(t, env.Error.Details, "fields")

	rr, env = do(t, h.Apportion, "/api/v1/apportionments", `{"discount":{"amount":"100.01"},"items":[{"guid":"a","price":"100.00"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)

	rr, env = do(t, h.Apportion, "/api/v1/apportionments", `{"discount":{"amount":"1.00","currency":"XYZ"},"items":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)

	rr, env = do(t, h.Apportion, "/api/v1/apportionments", `{"discount":{"amount":"1.00"},"items":[{"guid":"a","price":"1"},{"guid":"a","price":"2"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)
}

type fixedRates struct {
	desc tax.RateDescriptor
	err  error
}

func (f fixedRates) Resolve(context.Context, tax.TaxableItem, tax.OperationContext) (tax.RateDescriptor, error) {
	return f.desc, f.err
}

func newTaxHandler(t *testing.T, rates tax.RateResolver) *Handler {
	t.Helper()
	stores, err := store.ParseStatic("CA-STORE=GOODS,SHIPPING")
	require.NoError(t, err)
	svc, err := tax.NewService(tax.ServiceDeps{Resolver: rates, Stores: stores})
	require.NoError(t, err)
	return NewHandler(HandlerConfig{Taxes: svc, DefaultCurrency: "CAD"})
}

const taxBody = `{
	"storeCode": "CA-STORE",
	"origin": {"country": "CA", "subCountry": "BC"},
	"destination": {"country": "CA", "subCountry": "BC"},
	"shippingCost": "8.00",
	"discount": "10.00",
	"items": [{"guid": "a", "skuCode": "1", "quantity": 1, "price": "100.00", "taxCode": "GOODS"}]
}`

func TestCalculateTaxesEndpoint(t *testing.T) {
	gstPst := tax.RateDescriptor{Rates: []tax.Rate{
		{Name: "GST", Value: decimal.RequireFromString("0.05")},
		{Name: "PST", Value: decimal.RequireFromString("0.08")},
	}}
	h := newTaxHandler(t, fixedRates{desc: gstPst})

	rr, env := do(t, h.CalculateTaxes, "/api/v1/tax-calculations", taxBody)
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, "CAD", got["currency"])
	require.Equal(t, false, got["taxInclusive"])
	require.NotEmpty(t, got["documentId"])
	require.Equal(t, map[string]any{"GST": "4.90", "PST": "7.84"}, got["taxesByCategory"])
}

func TestCalculateTaxesEndpointErrors(t *testing.T) {
	h := newTaxHandler(t, fixedRates{err: resolver.ErrNoRate})
	rr, env := do(t, h.CalculateTaxes, "/api/v1/tax-calculations", taxBody)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "NO_TAX_RATE", env.Error.Code)

	h = newTaxHandler(t, fixedRates{err: errors.New("vendor exploded")})
	rr, env = do(t, h.CalculateTaxes, "/api/v1/tax-calculations", taxBody)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Equal(t, "TAX_PROVIDER_ERROR", env.Error.Code)

	rr, env = do(t, h.CalculateTaxes, "/api/v1/tax-calculations", strings.Replace(taxBody, "CA-STORE", "NOPE", 1))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "STORE_NOT_FOUND", env.Error.Code)

	rr, env = do(t, h.CalculateTaxes, "/api/v1/tax-calculations", `{"items":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)

	rr, env = do(t, h.CalculateTaxes, "/api/v1/tax-calculations", `{"storeCode":"CA-STORE","destination":{"country":"Canada"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)
}

func TestCalculateTaxesWithoutAddressIsEmpty(t *testing.T) {
	h := newTaxHandler(t, fixedRates{err: errors.New("must not be called")})
	rr, env := do(t, h.CalculateTaxes, "/api/v1/tax-calculations", `{"storeCode":"CA-STORE","items":[{"guid":"a","price":"5.00"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, "0.00", got["totalTaxes"])
}

func TestCalculateTaxesWithoutService(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	rr := httptest.NewRecorder()
	h.CalculateTaxes(rr, httptest.NewRequest(http.MethodPost, "/api/v1/tax-calculations", strings.NewReader(taxBody)))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
