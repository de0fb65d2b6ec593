package server

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MaxCommandLength is the size of each session's buffered reader. It does
// not cap line length: readLine uses ReadString, which keeps accumulating
// past the buffer size until a newline arrives.
const MaxCommandLength = 4096

type sessionState int

const (
	stateNaming sessionState = iota
	stateActive
	stateTerminated
)

// Session owns one client connection end to end (spec.md §3). It is
// created by the Acceptor and runs entirely on its own goroutine; every
// field below that changes after construction is either written exactly
// once by that goroutine before the Session joins any Room (username), or
// written only by that goroutine and never read by another (currentRoom —
// see the invariant note on CurrentRoom).
type Session struct {
	server *Server
	id     string
	conn   net.Conn
	reader *bufio.Reader

	remoteAddr string

	writeMu sync.Mutex // serializes writes to conn; a leaf lock, per spec.md §5

	// username is written exactly once, during Naming, right after the name
	// is claimed in the User registry and before the Session joins any
	// Room; other goroutines that find the Session through the User
	// registry only call send, which does not read it. Every later read —
	// including reads from other sessions' goroutines during broadcast
	// fan-out — observes that single write with no further
	// synchronization, which is sound only because of this write-once
	// discipline (spec.md §9, open question (a)).
	username string

	// currentRoom is mutated only by this Session's own goroutine (via
	// roomRegistry.join/leave, which always run on the owning worker) and
	// is never read by another goroutine; the Room registry tracks
	// membership itself rather than polling this field from outside.
	currentRoom string

	active atomic.Bool

	registered bool // true once username uniqueness succeeded; gates DISCONNECT logging
}

func newSession(s *Server, conn net.Conn) *Session {
	sess := &Session{
		server:     s,
		id:         uuid.NewString(),
		conn:       conn,
		reader:     bufio.NewReaderSize(conn, MaxCommandLength),
		remoteAddr: conn.RemoteAddr().String(),
	}
	sess.active.Store(true)
	return sess
}

// Username returns the session's registered name, or "" if naming has not
// completed. Safe to call from any goroutine; see the field comment.
func (s *Session) Username() string { return s.username }

// CurrentRoom returns the session's current room name, or "" if none. Only
// the owning worker goroutine calls this.
func (s *Session) CurrentRoom() string { return s.currentRoom }

func (s *Session) setCurrentRoom(name string) { s.currentRoom = name }

// send writes one line to the client, appending "\n" if not already
// present. It is leaf-level: it must never call back into a registry
// (spec.md §5, "send-under-lock"), so it is safe to invoke while a caller
// holds the Room or User registry lock.
func (s *Session) send(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write([]byte(line))
	return err
}

// readLine reads one LF-terminated line, stripping the trailing "\n" and
// any trailing "\r" for peers that send CRLF. It tolerates a command and
// its terminating newline arriving in separate TCP segments, since
// bufio.Reader.ReadString blocks until the delimiter appears.
func (s *Session) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// serve drives the Naming -> Active -> Terminated state machine (spec.md
// §4.2). It runs entirely on the goroutine spawned by the Acceptor and
// returns only once Terminated cleanup has completed exactly once.
func (s *Session) serve() {
	state := stateNaming
	for state != stateTerminated {
		switch state {
		case stateNaming:
			state = s.runNaming()
		case stateActive:
			state = s.runActive()
		}
	}
	s.teardown()
}

func (s *Session) runNaming() sessionState {
	for {
		if err := s.send("Enter username (max 16 chars, alphanumeric): "); err != nil {
			return stateTerminated
		}

		line, err := s.readLine()
		if err != nil {
			return stateTerminated
		}

		switch err := s.server.claimUsername(line, s); {
		case errors.Is(err, ErrInvalidUsername):
			if err := s.send("[ERROR] Invalid username. Use alphanumeric characters only.\n"); err != nil {
				return stateTerminated
			}
			continue
		case errors.Is(err, ErrUsernameTaken):
			s.server.eventLog.record(tagRejected, "username already taken: "+line)
			if err := s.send("[ERROR] Username already taken. Choose another.\n"); err != nil {
				return stateTerminated
			}
			continue
		}

		s.username = line
		s.registered = true
		s.server.eventLog.record(tagLogin, line+" connected from "+s.remoteAddr)
		if err := s.send("[SUCCESS] Connected to chat server!\n"); err != nil {
			return stateTerminated
		}
		_ = s.send("Commands: /join <room>, /leave, /broadcast <msg>, /whisper <user> <msg>, /sendfile <path> <user>, /exit\n")
		return stateActive
	}
}

func (s *Session) runActive() sessionState {
	for {
		line, err := s.readLine()
		if err != nil {
			return stateTerminated
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if s.server.throttle != nil && !s.server.throttle.Allow(s.id) {
			_ = s.send("[ERROR] Too many commands. Slow down.\n")
			continue
		}

		start := time.Now()
		cmd, terminate := s.dispatch(line)
		if s.server.metrics != nil {
			s.server.metrics.RecordCommand(cmd, true, time.Since(start))
		}
		if terminate {
			return stateTerminated
		}
	}
}

// teardown runs the Terminated-state cleanup exactly once (spec.md §4.2):
// leave any room, remove from the User registry, close the stream, and log
// DISCONNECT if a username was ever registered. Registry removal always
// precedes closing the socket so no other worker can dispatch to a closed
// handle (spec.md §3, Ownership).
func (s *Session) teardown() {
	s.active.Store(false)

	if s.currentRoom != "" {
		_ = s.server.rooms.leave(s)
	}
	if s.username != "" {
		s.server.users.remove(s.username, s)
	}
	_ = s.conn.Close()

	if s.registered {
		s.server.eventLog.record(tagDisconnect, s.username+" disconnected")
	}

	s.server.sessionDone(s)
}
