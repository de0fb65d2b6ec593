package server

import "time"

// MetricsCollector is an optional interface for collecting server metrics.
// Implementations can send metrics to monitoring systems such as
// Prometheus, StatsD, or Datadog.
//
// All methods are called from various points in the session and server
// lifecycle and must be non-blocking; a slow collector stalls the session
// that triggered it. If a method needs to do real work, dispatch it
// asynchronously.
//
// The server never calls a nil MetricsCollector; WithMetricsCollector's
// default is noopMetrics, mirroring the teacher's nil-collaborator
// convention for other optional components.
type MetricsCollector interface {
	// RecordConnection records an accept-loop outcome. reason is one of
	// "accepted" or "server_full".
	RecordConnection(accepted bool, reason string)

	// RecordCommand records one dispatched command (spec.md §4.2's command
	// set, or "unknown" for an unrecognized line). duration is the time
	// spent in the handler.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordRoomCount reports the current room census, taken after any
	// join or leave.
	RecordRoomCount(rooms, members int)

	// RecordTransfer records one Transfer worker delivery attempt. bytes is
	// the file's declared size; delivered is false when the receiver had
	// gone offline by delivery time.
	RecordTransfer(bytes int64, queueWait, transferDuration time.Duration, delivered bool)
}

// noopMetrics discards every observation. It is the default collector.
type noopMetrics struct{}

func (noopMetrics) RecordConnection(bool, string)                            {}
func (noopMetrics) RecordCommand(string, bool, time.Duration)                {}
func (noopMetrics) RecordRoomCount(int, int)                                 {}
func (noopMetrics) RecordTransfer(int64, time.Duration, time.Duration, bool) {}
