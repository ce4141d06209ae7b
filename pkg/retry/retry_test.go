package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100*time.Second, cfg.InitialDelay)
	assert.Equal(t, 100*time.Second, cfg.MaxDelay)
	assert.Equal(t, 1.0, cfg.Multiplier)
	assert.False(t, cfg.AddJitter)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"fixed", Fixed(time.Second), false},
		{"exponential", Config{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}, false},
		{"zero initial", Config{InitialDelay: 0}, true},
		{"negative max", Config{InitialDelay: time.Second, MaxDelay: -1}, true},
		{"max below initial", Config{InitialDelay: time.Minute, MaxDelay: time.Second}, true},
		{"negative multiplier", Config{InitialDelay: time.Second, Multiplier: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBackoff_Fixed(t *testing.T) {
	b := NewBackoff(DefaultConfig())

	for i := 0; i < 5; i++ {
		assert.Equal(t, 100*time.Second, b.Next())
	}
}

func TestBackoff_Exponential(t *testing.T) {
	b := NewBackoff(Config{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false, // Disable for predictable tests
	})

	assert.Equal(t, 10*time.Millisecond, b.Next())
	assert.Equal(t, 20*time.Millisecond, b.Next())
	assert.Equal(t, 40*time.Millisecond, b.Next())
	assert.Equal(t, 50*time.Millisecond, b.Next())
	assert.Equal(t, 50*time.Millisecond, b.Next())

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.Next())
}

func TestBackoff_Jitter(t *testing.T) {
	b := NewBackoff(Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   1.0,
		AddJitter:    true,
	})

	for i := 0; i < 20; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 125*time.Millisecond)
	}
}

func TestBackoff_ZeroConfigFallsBack(t *testing.T) {
	b := NewBackoff(Config{})
	assert.Equal(t, DefaultInterval, b.Next())
	assert.Equal(t, DefaultInterval, b.Next())
}

func TestSleep_Completes(t *testing.T) {
	start := time.Now()
	err := Sleep(context.Background(), 20*time.Millisecond)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleep_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel() // Cancel during backoff
	}()

	start := time.Now()
	err := Sleep(ctx, 10*time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSleep_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestSleep_ZeroDuration(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
}
