package apportion

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed apportionment input.
	ErrInvalidArgument = errors.New("apportion: invalid argument")
	// ErrDivisionByZero is returned by Proportion when the basis sums to zero.
	ErrDivisionByZero = errors.New("apportion: division by zero")
	// ErrDiscountExceedsTotal is returned when the amount to spread is larger than the eligible basis.
	ErrDiscountExceedsTotal = fmt.Errorf("%w: discount exceeds discountable total", ErrInvalidArgument)
	// ErrUnreconciled is returned if a rounding residual is left over after adjustment.
	ErrUnreconciled = errors.New("apportion: rounding residual could not be reconciled")
)
