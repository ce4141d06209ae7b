package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdevelnet/udp-logger/config"
	"github.com/xdevelnet/udp-logger/health"
)

var linePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4} \d{2}:\d{2}:\d{2}\.\d{3} - (.*)$`)

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())
	return port
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// readMessages returns the packet log messages with timestamps checked and
// stripped
func readMessages(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var msgs []string
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		m := linePattern.FindStringSubmatch(line)
		require.NotNil(t, m, "malformed line %q", line)
		msgs = append(msgs, m[1])
	}
	return msgs
}

func TestRunDaemon_LogsAndShutsDown(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "udp_log")

	cfg := config.Default()
	cfg.LogFile = logPath
	cfg.Listen.Bind = "127.0.0.1"
	cfg.Listen.Port = freeUDPPort(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = freeTCPPort(t)
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runDaemon(ctx, cfg, discardLogger()) }()

	healthURL := "http://127.0.0.1:" + strconv.Itoa(cfg.Metrics.Port) + "/health"
	// Healthy only once the socket is bound and receiving
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var status health.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return false
		}
		return resp.StatusCode == http.StatusOK && status.IsHealthy()
	}, 5*time.Second, 20*time.Millisecond)

	conn, err := net.Dial("udp4", "127.0.0.1:"+strconv.Itoa(cfg.Listen.Port))
	require.NoError(t, err)
	_, err = conn.Write([]byte("hello\x07"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), "Received packet")
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(cfg.Metrics.Port) + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "udplogd_udp_packets_received_total 1")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	assert.Equal(t, []string{
		"Received packet. Payload len: 6. From: 127.0.0.1. Printable data: hello",
		"Interrupting from recvfrom() syscall",
	}, readMessages(t, logPath))
}

func TestRunDaemon_MetricsPortBusy(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()

	logPath := filepath.Join(t.TempDir(), "udp_log")

	cfg := config.Default()
	cfg.LogFile = logPath
	cfg.Listen.Bind = "127.0.0.1"
	cfg.Listen.Port = freeUDPPort(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = busy.Addr().(*net.TCPAddr).Port
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runDaemon(ctx, cfg, discardLogger()) }()

	conn, err := net.Dial("udp4", "127.0.0.1:"+strconv.Itoa(cfg.Listen.Port))
	require.NoError(t, err)
	defer conn.Close()

	// Datagrams sent before the bind are lost, so keep sending until one lands
	require.Eventually(t, func() bool {
		_, _ = conn.Write([]byte("still here"))
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), "Received packet")
	}, 5*time.Second, 50*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("daemon stopped without a signal: %v", err)
	default:
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Interrupting")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	msgs := readMessages(t, logPath)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Interrupting from recvfrom() syscall", msgs[len(msgs)-1])
	for _, msg := range msgs[:len(msgs)-1] {
		assert.Equal(t, "Received packet. Payload len: 10. From: 127.0.0.1. Printable data: still here", msg)
	}
}

func TestRunDaemon_AppendsToExistingLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "udp_log")
	require.NoError(t, os.WriteFile(logPath, []byte("01-01-2020 00:00:00.000 - earlier run\n"), 0644))

	cfg := config.Default()
	cfg.LogFile = logPath
	cfg.Listen.Bind = "127.0.0.1"
	cfg.Listen.Port = freeUDPPort(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, runDaemon(ctx, cfg, discardLogger()))
	assert.Equal(t, []string{
		"earlier run",
		"Interrupting from socket() syscall",
	}, readMessages(t, logPath))
}

func TestRunDaemon_UnwritableLog(t *testing.T) {
	cfg := config.Default()
	cfg.LogFile = t.TempDir() // a directory cannot be opened for writing

	err := runDaemon(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open packet log")
}

func TestInitializeConfiguration(t *testing.T) {
	t.Setenv("UDPLOGD_LISTEN_PORT", "")

	path := filepath.Join(t.TempDir(), "udplogd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  port: 7777\nlog:\n  level: warn\n"), 0600))

	cfg, err := initializeConfiguration(&CLIConfig{
		ConfigPath: path,
		LogFile:    "override.log",
		LogFormat:  "text",
	})
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Listen.Port)
	assert.Equal(t, "override.log", cfg.LogFile)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestInitializeConfiguration_NoFile(t *testing.T) {
	cfg, err := initializeConfiguration(&CLIConfig{})
	require.NoError(t, err)
	assert.Equal(t, "udp_log", cfg.LogFile)
}

func TestInitializeConfiguration_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udplogd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen": {"bind": "example.com"}}`), 0600))

	_, err := initializeConfiguration(&CLIConfig{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestInitializeConfiguration_Unreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udplogd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen": `), 0600))

	_, err := initializeConfiguration(&CLIConfig{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestReceiverConfig(t *testing.T) {
	cfg := config.Default()
	rc := receiverConfig(cfg)

	assert.Equal(t, "0.0.0.0", rc.Bind)
	assert.Equal(t, 8888, rc.Port)
	assert.Equal(t, 1000, rc.MaxDatagramSize)
	assert.Equal(t, 100*time.Second, rc.Backoff.InitialDelay)
	assert.NoError(t, rc.Validate())
}

func TestInitializeConfiguration_CLIFixesFileValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udplogd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0600))

	// The file alone is invalid; the command line overrides the bad value
	cfg, err := initializeConfiguration(&CLIConfig{ConfigPath: path, LogFormat: "json"})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)

	_, err = initializeConfiguration(&CLIConfig{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRun_Validate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udplogd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen": {"port": 7000}}`), 0600))

	require.NoError(t, run([]string{"-validate", "-config", path, "-log-level", "debug"}))
}

func TestRun_Version(t *testing.T) {
	// run writes to os.Stdout; only the exit path matters here
	require.NoError(t, run([]string{"-version"}))
}
