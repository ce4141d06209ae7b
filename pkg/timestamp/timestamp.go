// Package timestamp formats wall-clock times for the packet log.
//
// Every log entry starts with a local calendar time at millisecond precision:
//
//	19-10-2026 14:03:07.042 - Received packet. Payload len: 4. ...
//
// The millisecond is rounded from the microsecond part of the time (ties to
// even). When rounding reaches 1000 the extra second is carried into the
// seconds field, so a line never shows ".1000".
//
// Usage Examples:
//
//	// Date-time and millisecond separately
//	stamp, msec := timestamp.Split(time.Now())
//
//	// Full prefix
//	prefix := timestamp.Format(time.Now())
//
//	// Full log line without trailing newline
//	line := timestamp.Entry(time.Now(), "Interrupting from recvfrom() syscall")
package timestamp

import (
	"fmt"
	"math"
	"time"
)

// Layout is the date-time part of a log entry: DD-MM-YYYY HH:MM:SS.
const Layout = "02-01-2006 15:04:05"

// Separator sits between the timestamp and the message of a log entry.
const Separator = " - "

// Split returns the date-time string of t in t's location and the rounded
// millisecond in [0, 999]. A millisecond that rounds up to 1000 is carried
// into the seconds field.
func Split(t time.Time) (string, int) {
	usec := t.Nanosecond() / int(time.Microsecond)
	msec := int(math.RoundToEven(float64(usec) / 1000))

	whole := t.Add(-time.Duration(t.Nanosecond()))
	if msec >= 1000 {
		msec -= 1000
		whole = whole.Add(time.Second)
	}

	return whole.Format(Layout), msec
}

// Format returns "<DD-MM-YYYY HH:MM:SS>.<msec>" with a three digit millisecond.
func Format(t time.Time) string {
	stamp, msec := Split(t)
	return fmt.Sprintf("%s.%03d", stamp, msec)
}

// Entry returns a complete log line for msg, without the trailing newline.
func Entry(t time.Time, msg string) string {
	return Format(t) + Separator + msg
}

// Clock returns the current time. Tests replace it to pin timestamps.
type Clock func() time.Time

// Local is the production clock: wall time in the process's local zone.
func Local() time.Time {
	return time.Now().Local()
}
