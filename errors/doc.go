// Package errors provides standardized error handling patterns for udp-logger.
//
// # Overview
//
// Errors fall into four classes: Transient (temporary, retryable), Invalid
// (bad input, non-retryable), Fatal (unrecoverable, stop processing) and
// Shutdown (a blocking call was aborted because the process was asked to stop).
//
// The receive loop relies on this split to pick between three reactions for
// every socket failure: log a shutdown line and stop, or log the cause and back
// off before retrying, or stop for good.
//
// # Error Classification
//
//   - Shutdown: context.Canceled, syscall.EINTR
//   - Transient: deadlines, EADDRINUSE, ENETDOWN, ENETUNREACH, descriptor
//     exhaustion, ErrStorageUnavailable
//   - Invalid: only errors wrapped with WrapInvalid
//   - Fatal: ErrStorageFull, ENOSPC, a log file that cannot be opened
//
// Shutdown is checked first, so a cancelled context wrapped as transient is
// still reported as a shutdown.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: <cause>"
//
// For example:
//
//	return errors.WrapTransient(err, "udp", "Bind", "bind socket")
//
// Use Cause to recover the innermost error, typically the bare system message
// that ends up in the packet log.
package errors
