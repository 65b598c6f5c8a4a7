package obs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := obs.InitTracer(context.Background(), obs.TracingConfig{ServiceName: "toko-pricing", Exporter: "zipkin"})
	require.Error(t, err)
}

func TestTracingMiddlewareContinuesCallerTrace(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName: "toko-pricing",
		Exporter:    "none",
		Environment: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	var seen trace.SpanContext
	r := chi.NewRouter()
	r.Use(obs.TracingMiddleware)
	r.Post("/api/v1/apportionments", func(w http.ResponseWriter, req *http.Request) {
		seen = trace.SpanContextFromContext(req.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/apportionments", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, seen.IsValid())
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen.TraceID().String())
	require.NotEqual(t, "00f067aa0ba902b7", seen.SpanID().String())
}
