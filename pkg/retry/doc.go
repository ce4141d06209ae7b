// Package retry provides backoff delays for operations that fail while the
// environment is not ready yet.
//
// The package does not run the operation itself. Callers that own a state
// machine, like the UDP receive loop, ask a Backoff for the next delay, log it,
// and then wait with Sleep, which returns early when the context is cancelled.
//
// # Basic Usage
//
//	b := retry.NewBackoff(retry.DefaultConfig()) // fixed 100s
//	for {
//	    if err := bind(); err == nil {
//	        b.Reset()
//	        break
//	    }
//	    if err := retry.Sleep(ctx, b.Next()); err != nil {
//	        return err // shutdown requested
//	    }
//	}
//
// # Configuration
//
//   - DefaultConfig: fixed 100 second interval, no jitter
//   - Fixed(d): same delay every time
//   - Custom Config with Multiplier > 1 for exponential growth up to MaxDelay
//
// Jitter adds up to 25% of the current delay.
package retry
