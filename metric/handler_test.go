package metric

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdevelnet/udp-logger/health"
)

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(0, "", NewMetricsRegistry())

	assert.Equal(t, 9090, s.port)
	assert.Equal(t, "/metrics", s.path)
	assert.Equal(t, "http://localhost:9090/metrics", s.Address())
}

func TestServer_MetricsEndpoint(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordBuildInfo("test")

	ts := httptest.NewServer(NewServer(9999, "/metrics", registry).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `udplogd_build_info{version="test"} 1`)
}

func getHealth(t *testing.T, url string) (int, health.Status) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return resp.StatusCode, status
}

func TestServer_HealthEndpoint(t *testing.T) {
	registry := NewMetricsRegistry()
	s := NewServer(9999, "/metrics", registry)

	var state atomic.Value
	state.Store(health.StateHealthy)
	s.AddHealthCheck("udp-receiver", func() health.Status {
		switch state.Load().(string) {
		case health.StateHealthy:
			return health.NewHealthy("udp-receiver", "receiving")
		case health.StateDegraded:
			return health.NewDegraded("udp-receiver", "waiting in bind")
		default:
			return health.NewUnhealthy("udp-receiver", "stopped")
		}
	})
	s.AddHealthCheck("log-sink", func() health.Status {
		return health.NewHealthy("log-sink", "0 lines written")
	})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	code, status := getHealth(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "udplogd", status.Component)
	require.Len(t, status.SubStatuses, 2)
	assert.Equal(t, "log-sink", status.SubStatuses[0].Component)
	assert.Equal(t, "receiving", status.SubStatuses[1].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.CoreMetrics().HealthCheckStatus.WithLabelValues("udp-receiver")))

	state.Store(health.StateDegraded)
	code, status = getHealth(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, status.IsDegraded())

	state.Store(health.StateUnhealthy)
	code, status = getHealth(t, ts.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.True(t, status.IsUnhealthy())
	assert.Equal(t, 0.0, testutil.ToFloat64(registry.CoreMetrics().HealthCheckStatus.WithLabelValues("udp-receiver")))
}

func TestServer_ComponentHealth(t *testing.T) {
	registry := NewMetricsRegistry()
	s := NewServer(9999, "/metrics", registry)
	s.AddHealthCheck("udp-receiver", func() health.Status {
		return health.NewDegraded("udp-receiver", "waiting in bind")
	})
	s.AddHealthCheck("log-sink", func() health.Status {
		return health.NewUnhealthy("log-sink", "closed")
	})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	code, status := getHealth(t, ts.URL+"/health/udp-receiver")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "udp-receiver", status.Component)
	assert.True(t, status.IsDegraded())
	assert.Empty(t, status.SubStatuses)

	code, status = getHealth(t, ts.URL+"/health/log-sink")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "closed", status.Message)
	assert.Equal(t, 0.0, testutil.ToFloat64(registry.CoreMetrics().HealthCheckStatus.WithLabelValues("log-sink")))

	resp, err := http.Get(ts.URL + "/health/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_UnknownPath(t *testing.T) {
	ts := httptest.NewServer(NewServer(9999, "/metrics", NewMetricsRegistry()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(freeTCPPort(t), "/metrics", NewMetricsRegistry())

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(s.Address())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer(freeTCPPort(t), "/metrics", NewMetricsRegistry())
	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Start())
}

func TestServer_StartNilRegistry(t *testing.T) {
	s := NewServer(freeTCPPort(t), "/metrics", nil)
	assert.Error(t, s.Start())
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ts := httptest.NewUnstartedServer(http.NotFoundHandler())
	port := ts.Listener.Addr().(*net.TCPAddr).Port
	ts.Listener.Close()
	return port
}
