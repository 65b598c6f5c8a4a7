package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/noah-isme/toko-pricing/internal/apportion"
	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/money"
)

type request struct {
	Discount struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"discount"`
	Items []cart.LinePayload `json:"items"`
}

type allocation struct {
	GUID   string `json:"guid"`
	Amount string `json:"amount"`
}

// apportion reads a cart and a discount as JSON and prints how the discount
// spreads over the discountable lines.
// Exit code 0 = ok, 1 = rejected input, 2 = other error.
func main() {
	var (
		file     = flag.String("file", "-", "request JSON file, - for stdin")
		currency = flag.String("currency", "CAD", "currency used when the request does not name one")
	)
	flag.Parse()

	out, err := run(*file, *currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apportion: %v\n", err)
		if errors.Is(err, apportion.ErrInvalidArgument) || errors.Is(err, cart.ErrInvalidInput) ||
			errors.Is(err, money.ErrUnknownCurrency) || errors.Is(err, money.ErrCurrencyMismatch) {
			os.Exit(1)
		}
		os.Exit(2)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func run(path, fallbackCurrency string) (map[string]any, error) {
	raw, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	code := strings.TrimSpace(req.Discount.Currency)
	if code == "" {
		code = fallbackCurrency
	}
	c, err := cart.Build(code, req.Items)
	if err != nil {
		return nil, err
	}
	discount, err := money.Parse(req.Discount.Amount, c.Currency)
	if err != nil {
		return nil, err
	}
	result, err := apportion.NewCalculator().Apportion(discount, c.Prices())
	if err != nil {
		return nil, err
	}

	rows := make([]allocation, 0, len(result))
	for guid, amount := range result {
		rows = append(rows, allocation{GUID: guid, Amount: amount.Fixed()})
	}
	slices.SortFunc(rows, func(a, b allocation) int { return strings.Compare(a.GUID, b.GUID) })
	return map[string]any{
		"currency":    c.Currency,
		"discount":    discount.Fixed(),
		"total":       discount.WithAmount(result.Total()).Fixed(),
		"allocations": rows,
	}, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
