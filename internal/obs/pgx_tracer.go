package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

// PGXTracer implements pgx.QueryTracer. The store attaches it to its pool so
// every tax code lookup shows up as a client span under the request span.
type PGXTracer struct {
	// Tracer overrides the global tracer provider; used in tests.
	Tracer trace.Tracer
}

func (t PGXTracer) tracer() trace.Tracer {
	if t.Tracer != nil {
		return t.Tracer
	}
	return otel.Tracer("toko-pricing/store")
}

// TraceQueryStart opens a span named after the SQL verb.
func (t PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	statement, verb := summarizeSQL(data.SQL)
	name := "store.query"
	if verb != "" {
		name = "store." + strings.ToLower(verb)
	}
	ctx, _ = t.tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", statement),
			attribute.String("db.operation", verb),
			attribute.Int("db.args", len(data.Args)),
		),
	)
	return ctx
}

// TraceQueryEnd closes the span opened by TraceQueryStart.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	span.End()
}

// summarizeSQL collapses whitespace, truncates long statements and returns the leading verb.
func summarizeSQL(sql string) (statement, verb string) {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "", ""
	}
	statement = strings.Join(fields, " ")
	if len(statement) > maxStatementLen {
		statement = statement[:maxStatementLen] + "..."
	}
	return statement, strings.ToUpper(fields[0])
}
