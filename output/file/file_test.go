package file

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/xdevelnet/udp-logger/errors"
	"github.com/xdevelnet/udp-logger/metric"
)

var testTime = time.Date(2023, 1, 15, 12, 30, 45, 7000000, time.UTC)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk unplugged")
}

func TestSink_WriteEntryToWriter(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSink(SinkDeps{Writer: &buf})
	require.NoError(t, err)

	require.NoError(t, sink.WriteEntry(testTime, "Interrupting from socket() syscall"))
	require.NoError(t, sink.WriteEntry(testTime, "second"))

	assert.Equal(t,
		"15-01-2023 12:30:45.007 - Interrupting from socket() syscall\n"+
			"15-01-2023 12:30:45.007 - second\n",
		buf.String())

	lines, written, failures := sink.Stats()
	assert.Equal(t, int64(2), lines)
	assert.Equal(t, int64(buf.Len()), written)
	assert.Equal(t, int64(0), failures)
	assert.Equal(t, "-", sink.Path())
}

func TestSink_OpenCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udp_log")

	first, err := NewSink(SinkDeps{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.WriteEntry(testTime, "one"))
	require.NoError(t, first.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, info.Mode().Perm()&DefaultMode)

	// Reopening must append, never truncate
	second, err := NewSink(SinkDeps{Path: path})
	require.NoError(t, err)
	require.NoError(t, second.WriteEntry(testTime, "two"))
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " - one"))
	assert.True(t, strings.HasSuffix(lines[1], " - two"))
}

func TestSink_OpenFailureIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "udp_log")

	sink, err := NewSink(SinkDeps{Path: path})
	require.Error(t, err)
	assert.Nil(t, sink)
	assert.True(t, pkgerrors.IsFatal(err))
}

func TestSink_DefaultPath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	sink, err := NewSink(SinkDeps{})
	require.NoError(t, err)
	defer sink.Close()

	assert.Equal(t, DefaultPath, sink.Path())
	_, err = os.Stat(filepath.Join(dir, DefaultPath))
	assert.NoError(t, err)
}

func TestSink_WriteFailure(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	sink, err := NewSink(SinkDeps{Writer: failingWriter{}, MetricsRegistry: registry})
	require.NoError(t, err)

	err = sink.WriteEntry(testTime, "lost")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransient(err))
	assert.ErrorIs(t, err, pkgerrors.ErrStorageUnavailable)

	_, _, failures := sink.Stats()
	assert.Equal(t, int64(1), failures)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.metrics.writeErrors))

	status := sink.Health()
	assert.True(t, status.IsUnhealthy())
	assert.Equal(t, "disk unplugged", status.Message)
	assert.Equal(t, int64(1), status.Metrics.ErrorCount)

	// A later successful write clears the failure
	sink.w = &bytes.Buffer{}
	require.NoError(t, sink.WriteEntry(testTime, "back"))
	assert.True(t, sink.Health().IsHealthy())
}

type fullDiskWriter struct{}

func (fullDiskWriter) Write([]byte) (int, error) {
	return 0, os.NewSyscallError("write", syscall.ENOSPC)
}

func TestSink_WriteFailureDiskFull(t *testing.T) {
	sink, err := NewSink(SinkDeps{Writer: fullDiskWriter{}})
	require.NoError(t, err)

	err = sink.WriteEntry(testTime, "lost")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsFatal(err))
	assert.ErrorIs(t, err, pkgerrors.ErrStorageFull)
	assert.ErrorIs(t, err, syscall.ENOSPC)
	assert.True(t, sink.Health().IsUnhealthy())
}

func TestSink_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	var buf bytes.Buffer
	sink, err := NewSink(SinkDeps{Writer: &buf, MetricsRegistry: registry})
	require.NoError(t, err)
	require.NotNil(t, sink.metrics)

	require.NoError(t, sink.WriteEntry(testTime, "x"))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.metrics.linesWritten))
	assert.Equal(t, float64(buf.Len()), testutil.ToFloat64(sink.metrics.bytesWritten))
}

func TestSink_CloseIsIdempotent(t *testing.T) {
	sink, err := NewSink(SinkDeps{Path: filepath.Join(t.TempDir(), "log")})
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	err = sink.WriteEntry(testTime, "after close")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyClosed)

	status := sink.Health()
	assert.True(t, status.IsUnhealthy())
	assert.Equal(t, "closed", status.Message)
}

func TestSink_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSink(SinkDeps{Writer: &buf})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.WriteEntry(testTime, strings.Repeat("z", 200)))
		}()
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		assert.Equal(t, "15-01-2023 12:30:45.007 - "+strings.Repeat("z", 200), line)
	}
}
