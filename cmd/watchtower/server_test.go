package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		DatabaseURL:          ":memory:",
		FlagThreshold:        0.7,
		PerspectiveThreshold: 0.75,
		ProviderRateLimit:    5,
		VerdictTTL:           time.Minute,
		AllowlistTTL:         time.Minute,
		BucketSize:           7,
		BucketRefillPerSec:   0.25,
		Workers:              2,
		DryRun:               true,
	}
}

func TestNewServerWiring(t *testing.T) {
	srv, err := NewServer(testConfig())
	require.NoError(t, err)
	defer srv.scheduler.Shutdown()

	require.NotNil(t, srv.engine)
	require.NotNil(t, srv.engine.Limiter)
	require.NotNil(t, srv.engine.Escalation)

	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "watchtower")
}

func TestEventEndpoint(t *testing.T) {
	srv, err := NewServer(testConfig())
	require.NoError(t, err)
	defer srv.scheduler.Shutdown()

	body := `{"ref":{"guildId":"g1","channelId":"c1","messageId":"m1"},"actorId":"a1","text":"hello there everyone"}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// missing actorId is rejected before it reaches the queue
	req = httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"ref":{"guildId":"g1"},"text":"x"}`))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllowlistToggleEndpoint(t *testing.T) {
	srv, err := NewServer(testConfig())
	require.NoError(t, err)
	defer srv.scheduler.Shutdown()

	body := `{"type":"user","snowflake":"12345"}`
	req := httptest.NewRequest(http.MethodPost, "/allowlist/g1/toggle", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":true`)

	// toggling again removes the entry
	req = httptest.NewRequest(http.MethodPost, "/allowlist/g1/toggle", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":false`)
}
