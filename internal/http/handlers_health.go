package httpx

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency such as Redis or Postgres answers.
type HealthCheck func(ctx context.Context) error

type healthResponse struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

// healthHandler answers readiness and liveness probes. It reports 503 with
// the names of failing dependencies when any check fails.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Failed = append(resp.Failed, name)
			}
		}
		status := http.StatusOK
		if len(resp.Failed) > 0 {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Cache-Control", "no-store")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			return
		}
		WriteJSON(w, status, resp)
	}
}
