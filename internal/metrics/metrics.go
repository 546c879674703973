// Package metrics names and emits the service's Prometheus series. Every
// function is a no-op until observability.InitMetrics has run.
package metrics

import (
	"time"

	"github.com/zycxfyh/nexus-verse/internal/observability"
)

func count(name string, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(name, 1, labels)
	}
}

func observe(name string, d time.Duration, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(name, d, labels)
	}
}

func set(name string, value float64, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(name, value, labels)
	}
}

func outcome(ok bool, good, bad string) string {
	if ok {
		return good
	}
	return bad
}
