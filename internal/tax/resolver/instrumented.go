package resolver

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// Instrumented records a span and a latency sample around every lookup.
type Instrumented struct {
	Next tax.RateResolver
	Name string
}

// Resolve implements tax.RateResolver.
func (i Instrumented) Resolve(ctx context.Context, item tax.TaxableItem, op tax.OperationContext) (tax.RateDescriptor, error) {
	ctx, span := otel.Tracer("tax.resolver").Start(ctx, "RateResolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("tax.resolver", i.Name),
		attribute.String("tax.code", item.TaxCode),
		attribute.String("tax.item_guid", item.GUID),
	)

	start := time.Now()
	desc, err := i.Next.Resolve(ctx, item, op)
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Bool("tax.inclusive", desc.Inclusive), attribute.Int("tax.rates", len(desc.Rates)))
	}
	if obs.TaxResolverDuration != nil {
		obs.TaxResolverDuration.WithLabelValues(i.Name, result).Observe(obs.DurationMillis(time.Since(start)))
	}
	return desc, err
}
