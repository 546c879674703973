package metrics

import (
	"strconv"
	"time"
)

// Server and HTTP error metrics
const (
	HealthCheckTotal     = "app_health_check_total"
	HealthCheckDuration  = "app_health_check_duration_ms"
	ServerStartTime      = "app_server_start_time_seconds"
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

// RecordHealthCheck records one dependency check run by the health manager.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	count(HealthCheckTotal, map[string]string{
		"check":  checkName,
		"status": outcome(healthy, "healthy", "unhealthy"),
	})
	observe(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records when serve began accepting requests (Unix seconds).
func SetServerStartTime(timestamp int64) {
	set(ServerStartTime, float64(timestamp), nil)
}

// RecordError counts an error envelope written to a client.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotalName, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a panic caught by the recovery middleware.
func RecordPanic() {
	count(PanicsTotalName, nil)
}

// RecordErrorByEndpoint counts errors per route pattern. endpoint must be a
// pattern, never a raw path.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByEndpointName, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}
