package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/apportion"
	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/resilience"
	"github.com/noah-isme/toko-pricing/internal/store"
	"github.com/noah-isme/toko-pricing/internal/tax"
	"github.com/noah-isme/toko-pricing/internal/tax/resolver"
)

// TaxCalculator is the part of tax.Service used by the handler.
type TaxCalculator interface {
	CalculateTaxesAndAddToResult(ctx context.Context, acc *tax.Result, req tax.Request) (*tax.Result, error)
}

// Handler exposes the apportionment and tax calculation endpoints.
type Handler struct {
	discounts tax.DiscountApportioner
	taxes     TaxCalculator
	validate  *validator.Validate
	currency  string
	logger    zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Discounts       tax.DiscountApportioner
	Taxes           TaxCalculator
	Validator       *validator.Validate
	DefaultCurrency string
	Logger          zerolog.Logger
}

// NewHandler constructs a Handler. Discounts defaults to apportion.NewCalculator().
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Discounts == nil {
		cfg.Discounts = apportion.NewCalculator()
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Handler{
		discounts: cfg.Discounts,
		taxes:     cfg.Taxes,
		validate:  cfg.Validator,
		currency:  strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency)),
		logger:    cfg.Logger,
	}
}

type moneyPayload struct {
	Amount   string `json:"amount" validate:"required,numeric"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type apportionRequest struct {
	Discount moneyPayload       `json:"discount"`
	Items    []cart.LinePayload `json:"items" validate:"dive"`
}

type apportionResponse struct {
	Currency    string            `json:"currency"`
	Allocations map[string]string `json:"allocations"`
}

// Apportion handles POST /api/v1/apportionments.
func (h *Handler) Apportion(w http.ResponseWriter, r *http.Request) {
	var req apportionRequest
	if !h.decode(w, r, &req) {
		return
	}
	currency := h.currencyOr(req.Discount.Currency)
	result, err := h.apportion(currency, req)
	if err != nil {
		recordApportionment("error", 0)
		h.writeError(w, r, err)
		return
	}
	recordApportionment("ok", len(result))

	allocations := make(map[string]string, len(result))
	for guid, amount := range result {
		allocations[guid] = amount.Fixed()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": apportionResponse{
		Currency:    currency,
		Allocations: allocations,
	}})
}

func (h *Handler) apportion(currency string, req apportionRequest) (apportion.Result, error) {
	c, err := cart.Build(currency, req.Items)
	if err != nil {
		return nil, err
	}
	discount, err := money.Parse(req.Discount.Amount, c.Currency)
	if err != nil {
		return nil, err
	}
	return h.discounts.Apportion(discount, c.Prices())
}

type taxRequest struct {
	StoreCode    string             `json:"storeCode" validate:"required"`
	Currency     string             `json:"currency" validate:"omitempty,len=3"`
	Origin       *tax.Address       `json:"origin"`
	Destination  *tax.Address       `json:"destination"`
	ShippingCost string             `json:"shippingCost" validate:"omitempty,numeric"`
	Discount     string             `json:"discount" validate:"omitempty,numeric"`
	JournalType  string             `json:"journalType" validate:"omitempty,oneof=PURCHASE RETURN"`
	CustomerCode string             `json:"customerCode"`
	Items        []cart.LinePayload `json:"items" validate:"dive"`
}

// CalculateTaxes handles POST /api/v1/tax-calculations.
func (h *Handler) CalculateTaxes(w http.ResponseWriter, r *http.Request) {
	if h.taxes == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tax service not configured", nil)
		return
	}
	var req taxRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.calculate(r.Context(), req)
	if err != nil {
		recordTaxCalculation("error", "")
		h.writeError(w, r, err)
		return
	}
	mode := "exclusive"
	if result.TaxInclusive() {
		mode = "inclusive"
	}
	recordTaxCalculation("ok", mode)
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) calculate(ctx context.Context, req taxRequest) (*tax.Result, error) {
	c, err := cart.Build(h.currencyOr(req.Currency), req.Items)
	if err != nil {
		return nil, err
	}
	shipping, err := optionalMoney(req.ShippingCost, c.Currency)
	if err != nil {
		return nil, err
	}
	discount, err := optionalMoney(req.Discount, c.Currency)
	if err != nil {
		return nil, err
	}
	acc, err := tax.NewResult(c.Currency)
	if err != nil {
		return nil, err
	}
	return h.taxes.CalculateTaxesAndAddToResult(ctx, acc, tax.Request{
		StoreCode:    req.StoreCode,
		Origin:       req.Origin,
		Destination:  req.Destination,
		ShippingCost: shipping,
		Discount:     discount,
		Items:        c.Snapshots(),
		Operation: tax.OperationContext{
			JournalType:  req.JournalType,
			CustomerCode: req.CustomerCode,
		},
	})
}

func optionalMoney(amount, currency string) (money.Money, error) {
	if strings.TrimSpace(amount) == "" {
		return money.Zero(currency)
	}
	return money.Parse(amount, currency)
}

func (h *Handler) currencyOr(currency string) string {
	if c := strings.TrimSpace(currency); c != "" {
		return strings.ToUpper(c)
	}
	return h.currency
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		appErr := common.NewAppError("INVALID_ARGUMENT", "validation failed", http.StatusUnprocessableEntity, err)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			appErr.Details = map[string]any{"fields": fields}
		}
		h.writeError(w, r, appErr)
		return false
	}
	return true
}

// classify maps domain errors onto the API error shape.
func classify(err error) *common.AppError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, resolver.ErrNoRate):
		return common.NewAppError("NO_TAX_RATE", "no tax rate for destination", http.StatusUnprocessableEntity, err)
	case errors.Is(err, store.ErrStoreNotFound):
		return common.NewAppError("STORE_NOT_FOUND", "store not found", http.StatusNotFound, err)
	case errors.Is(err, resilience.ErrOpenCircuit):
		return common.NewAppError("TAX_PROVIDER_UNAVAILABLE", "tax provider unavailable", http.StatusBadGateway, err)
	case errors.Is(err, tax.ErrRateLookup):
		return common.NewAppError("TAX_PROVIDER_ERROR", "tax rate lookup failed", http.StatusBadGateway, err)
	case errors.Is(err, apportion.ErrInvalidArgument),
		errors.Is(err, tax.ErrInvalidParameter),
		errors.Is(err, tax.ErrMixedInclusivity),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, money.ErrUnknownCurrency),
		errors.Is(err, cart.ErrInvalidInput):
		return common.NewAppError("INVALID_ARGUMENT", err.Error(), http.StatusUnprocessableEntity, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := classify(err)
	if appErr.Status() >= http.StatusInternalServerError {
		obs.LoggerFrom(r.Context(), h.logger).Error().Err(err).Str("path", r.URL.Path).Str("code", appErr.Code).Msg("pricing request failed")
	}
	common.WriteError(w, appErr)
}

func recordApportionment(result string, items int) {
	if obs.ApportionmentsTotal != nil {
		obs.ApportionmentsTotal.WithLabelValues(result).Inc()
	}
	if obs.ApportionedItems != nil && result == "ok" {
		obs.ApportionedItems.Observe(float64(items))
	}
}

func recordTaxCalculation(result, mode string) {
	if obs.TaxCalculationsTotal != nil {
		obs.TaxCalculationsTotal.WithLabelValues(result, mode).Inc()
	}
}
