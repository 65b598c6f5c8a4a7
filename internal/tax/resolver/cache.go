package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// Cached keeps resolved descriptors in Redis. Cache failures fall through to
// the wrapped resolver; errors from it are never cached.
type Cached struct {
	next   tax.RateResolver
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCached wraps next. A nil client or non-positive ttl disables caching.
func NewCached(next tax.RateResolver, client *redis.Client, ttl time.Duration) *Cached {
	return &Cached{next: next, client: client, ttl: ttl, prefix: "taxrate:"}
}

// Resolve implements tax.RateResolver.
func (c *Cached) Resolve(ctx context.Context, item tax.TaxableItem, op tax.OperationContext) (tax.RateDescriptor, error) {
	if c.client == nil || c.ttl <= 0 || op.Destination == nil {
		return c.next.Resolve(ctx, item, op)
	}
	key := c.key(item, op)
	if desc, ok := c.get(ctx, key); ok {
		return desc, nil
	}

	desc, err := c.next.Resolve(ctx, item, op)
	if err != nil {
		return tax.RateDescriptor{}, err
	}
	if data, err := json.Marshal(desc); err == nil {
		_ = c.client.Set(ctx, key, data, c.ttl).Err()
	}
	return desc, nil
}

func (c *Cached) get(ctx context.Context, key string) (tax.RateDescriptor, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			countCache("miss")
		} else {
			countCache("error")
		}
		return tax.RateDescriptor{}, false
	}
	var desc tax.RateDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		countCache("error")
		return tax.RateDescriptor{}, false
	}
	countCache("hit")
	return desc, true
}

// key covers every input the HTTP resolver forwards except the line amount and
// quantity, which do not change the rate. Customer specific answers (exemption
// certificates) live under a per-customer scope.
func (c *Cached) key(item tax.TaxableItem, op tax.OperationContext) string {
	parts := []string{
		op.StoreCode,
		strings.ToUpper(op.Currency),
		addressKey(op.Origin),
		addressKey(op.Destination),
		strings.ToUpper(item.TaxCode),
		item.ItemCode,
		op.JournalType,
	}
	base := strings.Join(parts, "|")
	if customer := strings.TrimSpace(op.CustomerCode); customer != "" {
		return c.prefix + "customer:" + customer + ":" + base
	}
	return c.prefix + base
}

func addressKey(addr *tax.Address) string {
	if addr == nil {
		return "-"
	}
	return jurisdictionKey(addr.Country, addr.SubCountry) + "/" + strings.ToUpper(strings.TrimSpace(addr.ZipCode))
}

func countCache(result string) {
	if obs.TaxRateCacheTotal != nil {
		obs.TaxRateCacheTotal.WithLabelValues(result).Inc()
	}
}
