package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zycxfyh/nexus-verse/internal/observability"
)

func withCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestRecordersEmitSeries(t *testing.T) {
	collector := withCollector(t)

	RecordResolution("dedicated", "success")
	RecordResolution("system_fallback", "unavailable")
	RecordCompletion("deepseek", false, 20*time.Millisecond)
	RecordConfigurationWrite("create")
	RecordHealthCheck("store", true, time.Millisecond)
	SetServerStartTime(time.Now().Unix())
	RecordError("SERVICE_UNAVAILABLE", 503)
	RecordErrorByEndpoint("/v1/users/{userID}/providers/{role}", "SERVICE_UNAVAILABLE")
	RecordPanic()

	assert.EqualValues(t, 2, collector.CountMetricsByName(ResolutionsTotal))
	assert.EqualValues(t, 1, collector.CountMetricsByName(CompletionsTotal))
	assert.EqualValues(t, 1, collector.CountMetricsByName(CompletionDuration))
	assert.EqualValues(t, 1, collector.CountMetricsByName(ConfigurationsWritten))
	assert.EqualValues(t, 1, collector.CountMetricsByName(HealthCheckTotal))
	assert.EqualValues(t, 1, collector.CountMetricsByName(HealthCheckDuration))
	assert.EqualValues(t, 1, collector.CountMetricsByName(ServerStartTime))
	assert.EqualValues(t, 1, collector.CountMetricsByName(ErrorsTotalName))
	assert.EqualValues(t, 1, collector.CountMetricsByName(ErrorsByEndpointName))
	assert.EqualValues(t, 1, collector.CountMetricsByName(PanicsTotalName))
}

func TestRecordersAreNoOpsWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordResolution("requisition", "success")
		RecordCompletion("openai", true, time.Millisecond)
		RecordHealthCheck("store", false, time.Millisecond)
		RecordPanic()
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(true, "success", "failure"))
	assert.Equal(t, "failure", outcome(false, "success", "failure"))
}
