package metrics

import (
	"time"

	obserrors "github.com/jemaat/portal/internal/observability/errors"
	"github.com/jemaat/portal/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Session lifecycle operations.
const (
	OpHydrate = "hydrate"
	OpLogin   = "login"
	OpLogout  = "logout"
	OpExpired = "expired"
)

// SessionMetric captures one session lifecycle event.
type SessionMetric struct {
	Op       string
	Result   string
	Role     string
	Duration time.Duration
	Err      error
}

// EmitSession emits auth.<op> counters and timings.
func EmitSession(sink statsd.Sink, in SessionMetric) {
	if sink == nil || in.Op == "" {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Role != "" {
		tags["role"] = in.Role
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth."+in.Op, 1, tags)
	if in.Duration > 0 {
		sink.Timing("auth."+in.Op+".duration", in.Duration, CloneTags(tags))
	}
}

// EmitGateDecision counts access gate outcomes per screen.
func EmitGateDecision(sink statsd.Sink, screen, kind string) {
	if sink == nil {
		return
	}
	sink.Count("gate.decision", 1, map[string]string{"screen": screen, "kind": kind})
}

// EmitActiveSessions reports the number of client sessions held in memory.
func EmitActiveSessions(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge("sessions.active", float64(n), nil)
}

// EmitCache counts content cache lookups.
func EmitCache(sink statsd.Sink, resource string, hit bool) {
	if sink == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	sink.Count("content.cache", 1, map[string]string{"resource": resource, "result": result})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
