package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/briarhall/chatcore/internal/throttle"
)

// DefaultSessionCap is the maximum number of concurrent sessions (spec.md
// §5).
const DefaultSessionCap = 15

// DefaultRoomCap is the maximum number of concurrent rooms (spec.md §5).
const DefaultRoomCap = 10

// Server is the chat server core: an accept loop, a registry of online
// users, a registry of rooms, and a bounded upload queue drained by a
// single Transfer worker.
//
// Lifecycle:
//  1. Create with NewServer.
//  2. Start with ListenAndServe or Serve.
//  3. Server runs until the listener closes or Shutdown is called.
//
// Basic example:
//
//	s, err := server.NewServer(":6000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
//
// With graceful shutdown:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	go func() {
//	    <-shutdownChan
//	    s.Shutdown(ctx)
//	}()
//	s.ListenAndServe()
type Server struct {
	addr string

	logger   *slog.Logger
	eventLog eventSink
	metrics  MetricsCollector

	sessionCap    int
	roomCap       int
	queueCapacity int
	transferDelay time.Duration
	shutdownDrain time.Duration

	fileResolver FileResolver

	commandRate  float64
	commandBurst int
	throttle     *throttle.Limiter

	users   *userRegistry
	rooms   *roomRegistry
	uploads *uploadQueue

	mu         sync.Mutex
	listener   net.Listener
	sessions   map[*Session]struct{}
	inShutdown atomic.Bool
	running    atomic.Bool

	wg sync.WaitGroup // Transfer worker + in-flight session goroutines
}

// NewServer creates a chat server listening on addr (e.g. ":6000").
//
// Defaults:
//   - SessionCap: 15
//   - RoomCap: 10
//   - Queue capacity: 5
//   - Transfer delay: 2s
//   - Logger: slog.Default()
//   - Event log: discarded
//   - FileResolver: os.Stat-backed
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:          addr,
		logger:        slog.Default(),
		eventLog:      discardSink{},
		metrics:       noopMetrics{},
		sessionCap:    DefaultSessionCap,
		roomCap:       DefaultRoomCap,
		queueCapacity: UploadQueueCapacity,
		transferDelay: DefaultTransferDelay,
		shutdownDrain: 10 * time.Second,
		fileResolver:  osFileResolver{},
		sessions:      make(map[*Session]struct{}),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.commandRate > 0 {
		s.throttle = throttle.New(s.commandRate, s.commandBurst)
	}

	s.users = newUserRegistry()
	s.rooms = newRoomRegistry(s.roomCap, s.sessionCap, s.eventLog)
	s.uploads = newUploadQueue(s.queueCapacity)

	return s, nil
}

// ListenAndServe starts the server on the configured address. It blocks
// until the server stops or an error occurs.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.logger.Info("chat server listening", "addr", s.addr)
	return s.Serve(ln)
}

// Serve accepts incoming connections on l, spawning one Session worker per
// connection (spec.md §4.1), and starts the Transfer worker. It blocks
// until the listener closes or Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.running.Store(true)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.transferWorker()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.handleConnection(conn)
	}
}

// handleConnection reserves a session slot (spec.md §4.1) and, if one is
// available, spawns a Session worker on its own goroutine. The Acceptor
// never blocks the registries — slot reservation is a single atomic
// compare against sessionCap.
func (s *Server) handleConnection(conn net.Conn) {
	if err := s.admitSession(); err != nil {
		_, _ = conn.Write([]byte("[ERROR] Server full. Try again later.\n"))
		_ = conn.Close()
		s.metrics.RecordConnection(false, "server_full")
		return
	}
	s.metrics.RecordConnection(true, "accepted")

	sess := newSession(s, conn)

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	// wg is released exactly once, by sessionDone (called from
	// Session.teardown), not here — teardown is the single completion
	// point for a session regardless of how it reaches Terminated.
	s.wg.Add(1)
	go sess.serve()
}

// admitSession returns ErrServerFull if another session does not fit under
// sessionCap, nil otherwise. Safe to call without further synchronization
// because Serve's accept loop is single-threaded: handleConnection runs to
// completion (including the registry insert) before the next Accept is
// processed.
func (s *Server) admitSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown.Load() || len(s.sessions) >= s.sessionCap {
		return ErrServerFull
	}
	return nil
}

// claimUsername validates name and, if valid, atomically binds it to sess
// in the User registry (spec.md §4.2 step 3-4).
func (s *Server) claimUsername(name string, sess *Session) error {
	if !validateUsername(name) {
		return ErrInvalidUsername
	}
	if !s.users.insertIfAbsent(name, sess) {
		return ErrUsernameTaken
	}
	return nil
}

// sessionDone removes a terminated session from the accounting map and
// releases its throttle bucket. Called exactly once, from Session.teardown.
func (s *Server) sessionDone(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.throttle.Forget(sess.id)
	s.wg.Done()
}

// ActiveSessions returns the current number of connected sessions, used by
// the admin surface.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RoomSnapshot returns room name -> member usernames, for the admin
// surface.
func (s *Server) RoomSnapshot() map[string][]string {
	return s.rooms.snapshot()
}

// Shutdown implements the graceful shutdown sequence of spec.md §4.7: mark
// running false, notify every active session, log SHUTDOWN with the
// count, close the listener to unblock the Acceptor, wake the Transfer
// worker, then wait up to the configured drain for all session and
// Transfer-worker goroutines to exit on their own before forcibly closing
// any still-open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.running.Store(false)

	notified := s.notifyShutdown()
	s.eventLog.record(tagShutdown, fmt.Sprintf("notified %d session(s)", notified))

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	var err error
	if ln != nil {
		err = ln.Close()
	}

	s.uploads.wake()

	drainCtx := ctx
	if s.shutdownDrain > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, s.shutdownDrain)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-drainCtx.Done():
		s.mu.Lock()
		sessions := s.sessions
		s.sessions = make(map[*Session]struct{})
		s.mu.Unlock()
		for sess := range sessions {
			_ = sess.conn.Close()
		}
		if err != nil {
			return err
		}
		return drainCtx.Err()
	}
}

// notifyShutdown emits the mandated SERVER-shutdown line to every active
// session under a single User-registry snapshot and returns the count
// notified (spec.md §4.7, end-to-end scenario 6).
func (s *Server) notifyShutdown() int {
	sessions := s.users.snapshot()
	for _, sess := range sessions {
		_ = sess.send("[SERVER] Server shutting down. Goodbye!\n")
	}
	return len(sessions)
}
