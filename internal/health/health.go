// Package health serves the liveness and readiness probes on the ops
// listener, next to /metrics.
//
//   - /healthz — liveness; a process that can serve HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered probe passes,
//     503 otherwise. The rules database probe is registered here when a
//     rules index is configured.
//
// Responses are JSON: a top-level "status" of "ok" or "fail", plus a
// "checks" map with one entry per probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when the dependency
// is usable and an error describing the failure otherwise. It must respect
// context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating the given checkers, in order, on every
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every probe under a [probeTimeout] deadline derived from the
// request context and answers 503 if any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := report{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	status := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			rep.Checks[c.Name] = "fail: " + err.Error()
			rep.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			rep.Checks[c.Name] = "ok"
		}
	}

	writeJSON(w, status, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
