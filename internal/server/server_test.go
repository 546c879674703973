package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	apperrors "github.com/zycxfyh/nexus-verse/internal/errors"
	"github.com/zycxfyh/nexus-verse/internal/server/handlers"
)

type singleUserStore struct {
	cfg ailink.Configuration
}

func (s singleUserStore) FindDedicated(_ context.Context, ownerID string, role ailink.Role) (*ailink.Configuration, error) {
	if ownerID == s.cfg.OwnerID && s.cfg.AssignedRoles.Contains(role) {
		cfg := s.cfg
		return &cfg, nil
	}
	return nil, nil
}

func (s singleUserStore) FindEarliest(_ context.Context, ownerID string) (*ailink.Configuration, error) {
	if ownerID == s.cfg.OwnerID {
		cfg := s.cfg
		return &cfg, nil
	}
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := singleUserStore{cfg: ailink.Configuration{
		ID:            "cfg-a",
		Provider:      ailink.ProviderOpenAI,
		APIKey:        "sk-user",
		ModelID:       "gpt-4o-mini",
		AssignedRoles: ailink.NewRoleSet("chat"),
		OwnerID:       "alice",
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	noFallback := &ailink.FallbackBuilder{Lookup: func(string) string { return "" }}
	scheduler := ailink.NewScheduler(store, ailink.NewFactory(), noFallback, nil)

	return New(Options{
		Resolver:  scheduler,
		Providers: ailink.NewFactory().Supported(),
	})
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestServerResolvesThroughScheduler(t *testing.T) {
	srv := newTestServer(t)

	t.Run("RequisitionForOtherRole", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/alice/providers/summarize", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "cfg-a", body["config_id"])
		assert.Equal(t, "requisition", body["tier"])
		assert.NotContains(t, rec.Body.String(), "sk-user")
	})

	t.Run("UnknownUserWithoutFallback", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/bob/providers/chat", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body apperrors.HTTPErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
		assert.Equal(t, ailink.UnavailableMessage, body.Error.Message)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/users/alice/providers/chat", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServerReadinessUsesRegisteredCheckers(t *testing.T) {
	health := handlers.NewHealthManager("test")
	health.RegisterChecker("store", handlers.CheckerFunc(func(context.Context) error {
		return errors.New("unreachable")
	}))
	srv := New(Options{Health: health})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerRecoversFromPanics(t *testing.T) {
	srv := newTestServer(t)
	srv.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "goroutine")
}
