package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

const fallbackMetricsPort = 9090

var (
	// TelemetrySystem receives every metric the service emits; nil disables metrics.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves TelemetrySystem in Prometheus text format.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter on port (0 picks a free one) and
// installs a telemetry system writing to it. Series are prefixed with the
// namespace, or serviceName when none is given. A previous exporter is stopped first.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	ShutdownMetrics()

	if port < 0 {
		port = 0
	}
	metricsPort = port

	prefix := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		prefix = namespace[0]
	}

	exporter := exporters.NewPrometheusExporter(prefix, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return err
	}

	switch actual, err := resolvePort(exporter.GetAddr()); {
	case err == nil:
		metricsPort = actual
	case port == 0:
		metricsPort = fallbackMetricsPort
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: exporter,
	})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// ShutdownMetrics stops the exporter and disables metric emission.
func ShutdownMetrics() {
	if PrometheusExporter != nil {
		_ = PrometheusExporter.Stop()
	}
	PrometheusExporter = nil
	TelemetrySystem = nil
}

// GetMetricsPort returns the port the Prometheus exporter is listening on
func GetMetricsPort() int {
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
