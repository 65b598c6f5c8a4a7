package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// ErrDisabled is returned by a probe whose dependency is not configured.
// Disabled dependencies do not fail readiness.
var ErrDisabled = errors.New("disabled")

const defaultProbeTimeout = 500 * time.Millisecond

// Probe checks one dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	// Advisory probes are reported but never fail readiness.
	Advisory bool
	Check    func(ctx context.Context) error
}

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness; the server flips it off while draining.
func SetReady(v bool) { ready.Store(v) }

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
}

// Report is the readiness payload.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and reports 503 when a required one fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "draining"})
		return
	}
	report := h.Check(r.Context())
	code := http.StatusOK
	if report.Status == "unavailable" {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, report)
}

// Check evaluates the probes without rendering a response.
func (h Handler) Check(ctx context.Context) Report {
	results := make([]error, len(h.Probes))
	var wg sync.WaitGroup
	for i, p := range h.Probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.run(ctx)
		}()
	}
	wg.Wait()

	report := Report{Status: "ok", Checks: make(map[string]string, len(h.Probes))}
	for i, p := range h.Probes {
		err := results[i]
		switch {
		case err == nil:
			report.Checks[p.Name] = "ok"
		case errors.Is(err, ErrDisabled):
			report.Checks[p.Name] = "disabled"
		case p.Advisory:
			report.Checks[p.Name] = err.Error()
			if report.Status == "ok" {
				report.Status = "degraded"
			}
		default:
			report.Checks[p.Name] = err.Error()
			report.Status = "unavailable"
		}
	}
	return report
}

func (p Probe) run(ctx context.Context) error {
	if p.Check == nil {
		return ErrDisabled
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
