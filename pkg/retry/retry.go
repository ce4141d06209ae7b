// Package retry provides cancel-aware backoff delays for the receive loop
package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// DefaultInterval is the wait applied before retrying a socket that could not
// be created or bound, e.g. while the network stack is still coming up at boot.
const DefaultInterval = 100 * time.Second

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Config provides backoff configuration
type Config struct {
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound for any delay
	Multiplier   float64       // Growth factor between delays (1.0 = fixed interval)
	AddJitter    bool          // Add up to 25% randomness to each delay
}

// DefaultConfig returns the daemon's fixed 100 second interval
func DefaultConfig() Config {
	return Fixed(DefaultInterval)
}

// Fixed returns a config that waits d before every retry
func Fixed(d time.Duration) Config {
	return Config{
		InitialDelay: d,
		MaxDelay:     d,
		Multiplier:   1.0,
		AddJitter:    false,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	if c.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay {
		return errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	if c.Multiplier < 0 {
		return errors.New("retry: Multiplier cannot be negative")
	}
	return nil
}

// Backoff hands out successive delays for one retry sequence.
// It is not safe for concurrent use; the receive loop owns its instance.
type Backoff struct {
	cfg   Config
	delay time.Duration
}

// NewBackoff creates a backoff sequence from cfg. Zero fields fall back to
// the fixed default interval.
func NewBackoff(cfg Config) *Backoff {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInterval
	}
	if cfg.MaxDelay <= 0 || cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	// Prevent overflow with extremely large multipliers
	if cfg.Multiplier > 1000 {
		cfg.Multiplier = 1000
	}

	return &Backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// Next returns the delay to wait now and advances the sequence
func (b *Backoff) Next() time.Duration {
	current := b.delay

	nextDelay := float64(b.delay) * b.cfg.Multiplier
	if nextDelay > float64(b.cfg.MaxDelay) {
		b.delay = b.cfg.MaxDelay
	} else {
		b.delay = time.Duration(nextDelay)
	}

	if b.cfg.AddJitter && current >= 4 {
		randMu.Lock()
		jitter := time.Duration(randSource.Int63n(int64(current / 4)))
		randMu.Unlock()
		current += jitter
	}

	return current
}

// Reset restarts the sequence at the initial delay
func (b *Backoff) Reset() {
	b.delay = b.cfg.InitialDelay
}

// Sleep blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the wait was cut short.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop() // Stop timer immediately when context cancelled
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
