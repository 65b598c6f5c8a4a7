package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-pricing/internal/resilience"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// HTTP asks a tax vendor for rates: POST {BaseURL}/v1/rates.
type HTTP struct {
	BaseURL string
	APIKey  string
	Client  resilience.HTTPClient
}

// NewHTTP builds a vendor client with retries, a breaker and an instrumented transport.
func NewHTTP(baseURL, apiKey string, timeout time.Duration, breaker *resilience.Breaker) *HTTP {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTP{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  apiKey,
		Client: resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     breaker,
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
			Timeout:     timeout,
			Target:      "tax_provider",
		},
	}
}

type rateRequest struct {
	TaxCode      string       `json:"taxCode"`
	ItemCode     string       `json:"itemCode"`
	Quantity     int          `json:"quantity"`
	Amount       string       `json:"amount"`
	Currency     string       `json:"currency"`
	JournalType  string       `json:"journalType,omitempty"`
	CustomerCode string       `json:"customerCode,omitempty"`
	Origin       *tax.Address `json:"origin,omitempty"`
	Address      *tax.Address `json:"address"`
}

// Resolve implements tax.RateResolver. A 404 answer maps to ErrNoRate.
func (h *HTTP) Resolve(ctx context.Context, item tax.TaxableItem, op tax.OperationContext) (tax.RateDescriptor, error) {
	dest, err := destinationOf(op)
	if err != nil {
		return tax.RateDescriptor{}, err
	}
	body, err := json.Marshal(rateRequest{
		TaxCode:      item.TaxCode,
		ItemCode:     item.ItemCode,
		Quantity:     item.Quantity,
		Amount:       item.TaxablePrice().String(),
		Currency:     op.Currency,
		JournalType:  op.JournalType,
		CustomerCode: op.CustomerCode,
		Origin:       op.Origin,
		Address:      dest,
	})
	if err != nil {
		return tax.RateDescriptor{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/v1/rates", bytes.NewReader(body))
	if err != nil {
		return tax.RateDescriptor{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "toko-pricing/1.0")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}
	if op.DocumentID != "" {
		req.Header.Set("X-Document-ID", op.DocumentID)
	}

	resp, err := h.Client.Do(ctx, req)
	if err != nil {
		return tax.RateDescriptor{}, fmt.Errorf("tax provider: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return tax.RateDescriptor{}, fmt.Errorf("%w: provider has no rate for %s", ErrNoRate, jurisdictionKey(dest.Country, dest.SubCountry))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tax.RateDescriptor{}, fmt.Errorf("tax provider: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var desc tax.RateDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return tax.RateDescriptor{}, fmt.Errorf("tax provider: decode rates: %w", err)
	}
	return desc, nil
}
