package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// HealthChecker verifies the gateway's component health from the live
// Catalog snapshot: configured vs connected upstreams, plus Go runtime
// signal. It never blocks on an upstream round-trip — everything it reads
// is already-cached catalog state.
type HealthChecker struct {
	store   *catalog.Store
	version string
}

// NewHealthChecker creates a HealthChecker over store. store may be nil in
// tests; the upstreams check reports "not configured" in that case.
func NewHealthChecker(store *catalog.Store, version string) *HealthChecker {
	return &HealthChecker{store: store, version: version}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.store != nil {
		cat := h.store.Snapshot()
		upstreams := cat.Upstreams()
		connected := 0
		degraded := 0
		for _, up := range upstreams {
			if _, status, ok := cat.Upstream(up.Name); ok {
				switch status {
				case catalog.StatusConnected:
					connected++
				case catalog.StatusDegraded, catalog.StatusDisconnected:
					degraded++
				}
			}
		}
		checks["upstreams"] = fmt.Sprintf("%d/%d connected", connected, len(upstreams))
		if len(upstreams) > 0 && connected == 0 {
			// Every configured upstream is unreachable: the gateway can
			// still serve list_functions/execute against a stale catalog,
			// but it is not doing its job.
			healthy = false
		}
		if degraded > 0 {
			checks["upstreams_degraded"] = fmt.Sprintf("%d", degraded)
		}
	} else {
		checks["upstreams"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable) // 503
		} else {
			w.WriteHeader(http.StatusOK) // 200
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}
