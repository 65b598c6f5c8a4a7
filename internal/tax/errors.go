package tax

import "errors"

var (
	// ErrInvalidParameter is returned when required calculation input is missing.
	ErrInvalidParameter = errors.New("tax: invalid parameter")
	// ErrMixedInclusivity is returned when one document mixes inclusive and exclusive rates.
	ErrMixedInclusivity = errors.New("tax: inclusive and exclusive rates in one document")
	// ErrRateLookup wraps every failure reported by the RateResolver.
	ErrRateLookup = errors.New("tax: rate lookup failed")
)
