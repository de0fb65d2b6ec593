package server

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// tag identifies the kind of event recorded by an eventSink, per spec.md
// §4.6.
type tag string

const (
	tagLogin      tag = "LOGIN"
	tagRejected   tag = "REJECTED"
	tagJoin       tag = "JOIN"
	tagLeave      tag = "LEAVE"
	tagBroadcast  tag = "BROADCAST"
	tagWhisper    tag = "WHISPER"
	tagFileQueue  tag = "FILE-QUEUE"
	tagSendFile   tag = "SEND FILE"
	tagDisconnect tag = "DISCONNECT"
	tagShutdown   tag = "SHUTDOWN"
	tagError      tag = "ERROR"
	tagServer     tag = "SERVER"
)

// eventSink is the collaborator that receives structured events from every
// component and forwards them to an external append-only log (spec.md
// §4.6). The engine only depends on this interface; fileEventSink below
// formats the lines, and where they are stored (and any rotation) is up to
// the io.Writer the caller supplies.
type eventSink interface {
	record(t tag, message string)
}

// discardSink drops every event. It is the default when no sink is
// configured, mirroring the teacher's nil-collaborator pattern for
// optional components (transferLog, metricsCollector).
type discardSink struct{}

func (discardSink) record(tag, string) {}

// fileEventSink writes one line per event to an io.Writer in the format
// mandated by spec.md §6:
//
//	YYYY-MM-DD HH:MM:SS - TAG free-form message\n
//
// Writes are serialized by mu so that two concurrent records never
// interleave within a line (spec.md §8, "Log atomicity"). This is a leaf
// lock: record never calls back into any other component while holding it,
// matching the teacher's discipline for its own transferLog writer.
type fileEventSink struct {
	mu sync.Mutex
	w  io.Writer
	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// newFileEventSink wraps w (typically an *os.File opened O_APPEND) as an
// eventSink. w is never closed by the sink; the caller owns its lifetime.
func newFileEventSink(w io.Writer) *fileEventSink {
	return &fileEventSink{w: w, now: time.Now}
}

func (s *fileEventSink) record(t tag, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("%s - %s %s\n", s.now().Format("2006-01-02 15:04:05"), t, message)
	_, _ = io.WriteString(s.w, line)
}
