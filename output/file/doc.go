// Package file provides the append-only sink for the packet log.
//
// # Overview
//
// The sink owns one file opened with O_WRONLY|O_CREATE|O_APPEND and mode
// 0644. Each call to WriteEntry produces exactly one line:
//
//	<DD-MM-YYYY HH:MM:SS>.<msec> - <message>
//
// The whole line, newline included, goes out in a single Write call while
// holding the sink mutex, so lines from different callers never interleave and
// O_APPEND keeps them at the end of the file even when another process writes
// to it as well.
//
// # Usage
//
//	sink, err := file.NewSink(file.SinkDeps{Path: "/var/log/udp_log"})
//	if err != nil {
//	    // fatal: the daemon cannot run without its log
//	}
//	defer sink.Close()
//
//	_ = sink.WriteEntry(time.Now(), "Interrupting from recvfrom() syscall")
//
// For tests or foreground runs pass SinkDeps.Writer instead of a path.
//
// # Errors
//
//   - Opening the file fails: fatal classified error
//   - A write fails: transient classified error, counted in Stats and metrics
//   - Writing after Close: invalid classified error wrapping ErrAlreadyClosed
package file
