package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"STORE_TAX_CODES": "CA-STORE=GOODS,SHIPPING",
		"DATABASE_URL":    "",
		"TAX_PROVIDER":    "",
		"PORT":            "",
	})
	require.NoError(t, err)
	require.Equal(t, TaxProviderStatic, cfg.TaxProvider)
	require.Equal(t, "CAD", cfg.DefaultCurrency)
	require.Equal(t, "configs/tax_rates.yaml", cfg.TaxRatesFile)
	require.Equal(t, 2*time.Second, cfg.TaxProviderTimeout)
	require.Equal(t, 10*time.Minute, cfg.TaxRateCacheTTL)
	require.Equal(t, 120, cfg.RateLimitMax)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.EqualValues(t, 1<<20, cfg.BodyLimitBytes)
	require.True(t, cfg.SecurityHeaders)
	require.False(t, cfg.EnableHSTS)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"STORE_TAX_CODES":                "",
		"DATABASE_URL":                   "postgres://localhost/toko",
		"TAX_PROVIDER":                   "HTTP",
		"TAX_PROVIDER_URL":               "https://tax.example.com",
		"TAX_PROVIDER_TIMEOUT":           "750ms",
		"TAX_PROVIDER_BREAKER_WINDOW":    "5",
		"TAX_PROVIDER_BREAKER_THRESHOLD": "0.25",
		"DEFAULT_CURRENCY":               "gbp",
		"RATE_LIMIT_MAX":                 "not-a-number",
		"CORS_ALLOWED_ORIGINS":           "https://a.example, ,https://b.example",
		"PORT":                           ":9090",
	})
	require.NoError(t, err)
	require.Equal(t, TaxProviderHTTP, cfg.TaxProvider)
	require.Equal(t, 750*time.Millisecond, cfg.TaxProviderTimeout)
	require.Equal(t, 5, cfg.BreakerWindow)
	require.InDelta(t, 0.25, cfg.BreakerThreshold, 1e-9)
	require.Equal(t, "GBP", cfg.DefaultCurrency)
	require.Equal(t, 120, cfg.RateLimitMax)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.False(t, cfg.SecurityHeaders)
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"STORE_TAX_CODES": "",
		"DATABASE_URL":    "",
		"TAX_PROVIDER":    "",
	})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"STORE_TAX_CODES":  "A=B",
		"TAX_PROVIDER":     "http",
		"TAX_PROVIDER_URL": "",
	})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"STORE_TAX_CODES": "A=B",
		"TAX_PROVIDER":    "carrier-pigeon",
	})
	require.Error(t, err)
}
