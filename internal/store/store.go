// Package store answers which tax codes a store has enabled.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrStoreNotFound is returned for an unknown store code.
var ErrStoreNotFound = errors.New("store: not found")

// Static is an in-memory store → tax codes table.
type Static map[string][]string

// ParseStatic reads "STORE=CODE,CODE;OTHER=CODE" as used by STORE_TAX_CODES.
func ParseStatic(raw string) (Static, error) {
	out := make(Static)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, codes, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("store: malformed entry %q", entry)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("store: duplicate store %q", name)
		}
		list := make([]string, 0)
		for _, code := range strings.Split(codes, ",") {
			if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
				list = append(list, code)
			}
		}
		sort.Strings(list)
		out[name] = list
	}
	return out, nil
}

// ActiveTaxCodes implements tax.StoreTaxCodes.
func (s Static) ActiveTaxCodes(_ context.Context, storeCode string) ([]string, error) {
	codes, ok := s[storeCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, storeCode)
	}
	out := make([]string, len(codes))
	copy(out, codes)
	return out, nil
}
