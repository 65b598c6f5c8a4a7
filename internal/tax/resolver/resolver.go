// Package resolver provides tax.RateResolver implementations: a static rate
// table, an HTTP tax vendor client and decorators for caching and telemetry.
package resolver

import (
	"errors"
	"strings"

	"github.com/noah-isme/toko-pricing/internal/tax"
)

// ErrNoRate is returned when no jurisdiction or vendor answer covers an item.
var ErrNoRate = errors.New("resolver: no tax rate for destination")

func jurisdictionKey(country, subCountry string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	subCountry = strings.ToUpper(strings.TrimSpace(subCountry))
	if subCountry == "" {
		return country
	}
	return country + "/" + subCountry
}

func destinationOf(op tax.OperationContext) (*tax.Address, error) {
	if op.Destination == nil || strings.TrimSpace(op.Destination.Country) == "" {
		return nil, ErrNoRate
	}
	return op.Destination, nil
}
