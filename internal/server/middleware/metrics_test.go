package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zycxfyh/nexus-verse/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	return collector
}

// providerRouter mounts the provider routes behind both middlewares.
func providerRouter(status int) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestMetrics)
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"provider":{}}`))
	}
	r.Get("/v1/users/{userID}/providers/{role}", handler)
	r.Post("/v1/users/{userID}/providers/{role}/complete", handler)
	return r
}

func TestRequestMetricsCountsProviderRequests(t *testing.T) {
	collector := setupTelemetry(t)

	rec := httptest.NewRecorder()
	providerRouter(http.StatusOK).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/u1/providers/chat", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"provider":{}}`, rec.Body.String())
	assert.EqualValues(t, 1, collector.CountMetricsByName("http_requests_total"))
	assert.EqualValues(t, 1, collector.CountMetricsByName("http_request_duration_ms"))
	assert.EqualValues(t, 1, collector.CountMetricsByName("http_response_size_bytes"))
	assert.Zero(t, collector.CountMetricsByName("http_errors_total"))
}

func TestRequestMetricsCountsUnavailableAsServerError(t *testing.T) {
	collector := setupTelemetry(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/providers/chat/complete", strings.NewReader(`{"prompt":"hi"}`))
	providerRouter(http.StatusServiceUnavailable).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.EqualValues(t, 1, collector.CountMetricsByName("http_requests_total"))
	assert.EqualValues(t, 1, collector.CountMetricsByName("http_errors_total"))
}

func TestRequestMetricsWithTelemetryDisabled(t *testing.T) {
	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	rec := httptest.NewRecorder()
	providerRouter(http.StatusOK).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/u1/providers/chat", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetEndpointPatternWithoutRouteContext(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "/health/*"},
		{"/health/live", "/health/*"},
		{"/health/ready", "/health/*"},
		{"/version", "/version"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/users/123", "/unknown"},
		{"/v1/users/u-42/providers/chat", providerPattern},
		{"/v1/users/u-42/providers/chat/complete", providerCompletePattern},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expected, EndpointLabel(req))
		})
	}
}

func TestGetEndpointPatternUsesRoutePattern(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			seen = EndpointLabel(req)
		})
	})
	r.Get("/v1/users/{userID}/providers/{role}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/users/secret-user/providers/chat", nil))
	assert.Equal(t, providerPattern, seen)
	assert.NotContains(t, seen, "secret-user")
}

func TestRequestIDHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name    string
		header  string
		adopted bool
	}{
		{"caller id adopted", "req-123", true},
		{"blank replaced", "   ", false},
		{"oversized replaced", strings.Repeat("a", maxRequestIDLength+1), false},
		{"control bytes replaced", "bad\x01id", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			echoed := rec.Header().Get(RequestIDHeader)
			require.NotEmpty(t, echoed)
			assert.Equal(t, echoed, seen)
			if tt.adopted {
				assert.Equal(t, tt.header, echoed)
			} else {
				assert.NotEqual(t, tt.header, echoed)
				assert.Len(t, echoed, 36, "generated IDs are UUIDs")
			}
		})
	}
}
