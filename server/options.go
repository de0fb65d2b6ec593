package server

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Server.
type Option func(*Server) error

// WithLogger sets the logger used for operational (non-chat-event)
// logging: the listener start and accept errors. If not specified,
// slog.Default() is used.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := server.NewServer(":6000", server.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithEventLog sets the append-only writer that receives one formatted
// line per structured event (spec.md §4.6, §6). If not set, events are
// discarded.
//
// Example:
//
//	logFile, _ := os.OpenFile("chat.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
//	s, _ := server.NewServer(":6000", server.WithEventLog(logFile))
func WithEventLog(w io.Writer) Option {
	return func(s *Server) error {
		s.eventLog = newFileEventSink(w)
		return nil
	}
}

// WithSessionCap overrides the maximum number of concurrent sessions.
// Defaults to 15 (spec.md §5). A value <= 0 is rejected.
func WithSessionCap(n int) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("session cap must be positive, got %d", n)
		}
		s.sessionCap = n
		return nil
	}
}

// WithRoomCap overrides the maximum number of concurrent rooms. Defaults
// to 10 (spec.md §5). A value <= 0 is rejected.
func WithRoomCap(n int) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("room cap must be positive, got %d", n)
		}
		s.roomCap = n
		return nil
	}
}

// WithQueueCapacity overrides the upload queue's fixed capacity. Defaults
// to 5 (spec.md §3). A value <= 0 is rejected.
func WithQueueCapacity(n int) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("queue capacity must be positive, got %d", n)
		}
		s.queueCapacity = n
		return nil
	}
}

// WithTransferDelay overrides the Transfer worker's simulated transfer
// duration. Defaults to DefaultTransferDelay (2s). Spec.md §9 allows this
// to be parameterized as long as the default stays long enough to make
// queue backpressure externally observable; tests may set it to near-zero.
func WithTransferDelay(d time.Duration) Option {
	return func(s *Server) error {
		s.transferDelay = d
		return nil
	}
}

// WithFileResolver overrides the FileResolver used to stat a /sendfile
// path. Defaults to a resolver backed by os.Stat.
func WithFileResolver(r FileResolver) Option {
	return func(s *Server) error {
		s.fileResolver = r
		return nil
	}
}

// WithMetricsCollector sets an optional metrics collector for monitoring
// commands, connections, room census, and transfers. See PromMetrics for a
// Prometheus-backed implementation.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(s *Server) error {
		s.metrics = collector
		return nil
	}
}

// WithCommandRateLimit enables per-session command-rate throttling: at
// most ratePerSecond commands per session sustained, with burst allowed
// instantaneously. A session that exceeds the limit receives
// "[ERROR] Too many commands. Slow down.\n" for the offending line instead
// of dispatch. Disabled (unlimited) by default.
func WithCommandRateLimit(ratePerSecond float64, burst int) Option {
	return func(s *Server) error {
		s.commandRate = ratePerSecond
		s.commandBurst = burst
		return nil
	}
}

// WithShutdownDrain overrides how long Shutdown waits for active sessions
// to finish teardown on their own before forcibly closing their
// connections. Defaults to 10 seconds.
func WithShutdownDrain(d time.Duration) Option {
	return func(s *Server) error {
		s.shutdownDrain = d
		return nil
	}
}
