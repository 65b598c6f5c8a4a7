package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	DefaultCurrency    string
	TaxRatesFile       string
	TaxProvider        string
	TaxProviderURL     string
	TaxProviderAPIKey  string
	TaxProviderTimeout time.Duration
	TaxRateCacheTTL    time.Duration
	StoreTaxCodes      string

	BreakerWindow    int
	BreakerThreshold float64
	BreakerCooldown  time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	BodyLimitBytes  int64
	SecurityHeaders bool
	EnableHSTS      bool
}

// Tax rate providers understood by TAX_PROVIDER.
const (
	TaxProviderStatic = "static"
	TaxProviderHTTP   = "http"
)

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		DefaultCurrency:    strings.ToUpper(valueOrDefault(k.String("DEFAULT_CURRENCY"), "CAD")),
		TaxRatesFile:       valueOrDefault(k.String("TAX_RATES_FILE"), "configs/tax_rates.yaml"),
		TaxProvider:        strings.ToLower(valueOrDefault(k.String("TAX_PROVIDER"), TaxProviderStatic)),
		TaxProviderURL:     strings.TrimSpace(k.String("TAX_PROVIDER_URL")),
		TaxProviderAPIKey:  k.String("TAX_PROVIDER_API_KEY"),
		TaxProviderTimeout: parseDuration(k.String("TAX_PROVIDER_TIMEOUT"), "2s"),
		TaxRateCacheTTL:    parseDuration(k.String("TAX_RATE_CACHE_TTL"), "10m"),
		StoreTaxCodes:      k.String("STORE_TAX_CODES"),
		BreakerWindow:      parseInt(k.String("TAX_PROVIDER_BREAKER_WINDOW"), 20),
		BreakerThreshold:   parseFloat(k.String("TAX_PROVIDER_BREAKER_THRESHOLD"), 0.5),
		BreakerCooldown:    parseDuration(k.String("TAX_PROVIDER_BREAKER_COOLDOWN"), "30s"),
		RateLimitMax:       parseInt(k.String("RATE_LIMIT_MAX"), 120),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders:    parseBool(k.String("SECURITY_HEADERS_ENABLE"), true),
		EnableHSTS:         parseBool(k.String("SECURITY_HSTS_ENABLE"), false),
	}

	switch cfg.TaxProvider {
	case TaxProviderStatic:
		if strings.TrimSpace(cfg.TaxRatesFile) == "" {
			return nil, errors.New("TAX_RATES_FILE is required for the static tax provider")
		}
	case TaxProviderHTTP:
		if cfg.TaxProviderURL == "" {
			return nil, errors.New("TAX_PROVIDER_URL is required for the http tax provider")
		}
	default:
		return nil, fmt.Errorf("unknown TAX_PROVIDER %q", cfg.TaxProvider)
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.StoreTaxCodes) == "" {
		return nil, errors.New("either DATABASE_URL or STORE_TAX_CODES is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
