package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/config"
	"github.com/mcdev12/bazaar/go/internal/gateway"
	"github.com/mcdev12/bazaar/go/internal/metrics"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupServer_HealthAndMetrics(t *testing.T) {
	registry := metrics.NewRegistry()
	svc := gateway.NewService(gateway.DefaultConfig(), gateway.Dependencies{
		Sink:  notify.LogSink{},
		Clock: clockwork.NewFakeClock(),
	})

	server := setupServer("0", svc, registry, nil)
	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	tests := []struct {
		path     string
		contains string
	}{
		{"/health", "OK"},
		{"/metrics", "go_goroutines"},
		{"/info", `"open_views":0`},
		{"/ws/stats", `"total_connections":0`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}

func TestSetupNotifications_LogBackend(t *testing.T) {
	cfg := config.Default()

	n, err := setupNotifications(context.Background(), &cfg, metrics.NewRegistry(), clockwork.NewFakeClock())
	require.NoError(t, err)
	defer n.Close()

	assert.Equal(t, notify.LogSink{}, n.Sink)
	assert.Nil(t, n.Health)
}

func TestSetupNotifications_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Backend = "pigeon"

	_, err := setupNotifications(context.Background(), &cfg, metrics.NewRegistry(), clockwork.NewFakeClock())
	assert.Error(t, err)
}
