package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banerjeearin/storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.HTTPServer.Port = 8080
	cfg.HTTPServer.Timeout.Read = 5 * time.Second
	cfg.HTTPServer.Timeout.Write = 10 * time.Second
	cfg.HTTPServer.Timeout.Idle = 120 * time.Second
	cfg.HTTPServer.Timeout.ReadHeader = 2 * time.Second
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.Shutdown.Timeout = 5 * time.Second
	return cfg
}

// The full handler stack comes up without Storefront API credentials: the
// page renders and the state reports the missing configuration.
func Test_App_UnconfiguredSmoke(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	deps, err := SetupDependencies(testConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, deps.MeterProvider.Shutdown(t.Context()))
	})

	server := httptest.NewServer(SetupHttpHandler(deps))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/cart")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
