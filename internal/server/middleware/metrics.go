package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/observability"
)

const (
	providerPattern         = "/v1/users/{userID}/providers/{role}"
	providerCompletePattern = providerPattern + "/complete"
	healthPattern           = "/health/*"
)

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// EndpointLabel returns a low-cardinality endpoint label for r. User IDs and
// roles never become label values.
func EndpointLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if routePattern := rctx.RoutePattern(); routePattern != "" {
			return routePattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return healthPattern
	case path == "/version", path == "/metrics", path == "/":
		return path
	case strings.HasPrefix(path, "/v1/users/") && strings.Contains(path, "/providers/"):
		if strings.HasSuffix(path, "/complete") {
			return providerCompletePattern
		}
		return providerPattern
	}
	return "/unknown"
}

// RequestMetrics records per-request counters and latency, then logs the request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		endpoint := EndpointLabel(r)
		recordRequest(r.Method, endpoint, rec, elapsed)
		logRequest(r, endpoint, rec, elapsed)
	})
}

func recordRequest(method, endpoint string, rec *statusRecorder, elapsed time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := strconv.Itoa(rec.statusCode)
	labels := map[string]string{
		"method":   method,
		"endpoint": endpoint,
		"status":   status,
	}

	_ = observability.TelemetrySystem.Counter("http_requests_total", 1, labels)
	_ = observability.TelemetrySystem.Histogram("http_request_duration_ms", elapsed, labels)
	_ = observability.TelemetrySystem.Gauge("http_response_size_bytes", float64(rec.bytesWritten),
		map[string]string{"method": method, "endpoint": endpoint})

	if rec.statusCode < 400 {
		return
	}
	errorType := "client_error"
	if rec.statusCode >= 500 {
		errorType = "server_error"
	}
	_ = observability.TelemetrySystem.Counter("http_errors_total", 1, map[string]string{
		"method":     method,
		"endpoint":   endpoint,
		"status":     status,
		"error_type": errorType,
	})
}

// logRequest names the user and role of provider calls. Health and scrape
// traffic logs at debug.
func logRequest(r *http.Request, endpoint string, rec *statusRecorder, elapsed time.Duration) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("endpoint", endpoint),
		zap.Int("status", rec.statusCode),
		zap.Duration("duration", elapsed),
		zap.Int64("response_size", rec.bytesWritten),
		zap.String("requestID", GetRequestID(r.Context())),
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if user := rctx.URLParam("userID"); user != "" {
			fields = append(fields, zap.String("user_id", user))
		}
		if role := rctx.URLParam("role"); role != "" {
			fields = append(fields, zap.String("role", role))
		}
	}

	if strings.HasPrefix(endpoint, "/health") || endpoint == "/metrics" {
		logger.Debug("HTTP request completed", fields...)
		return
	}
	logger.Info("HTTP request completed", fields...)
}
