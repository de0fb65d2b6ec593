package server

import (
	"fmt"
	"regexp"
	"sync"
)

// MaxUsernameLength is the maximum length of a username (spec.md §3).
const MaxUsernameLength = 16

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

// validateUsername reports whether name satisfies the 1-16 char, ASCII
// alphanumeric rule from spec.md §3.
func validateUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// userRegistry is the thread-safe username -> Session mapping described in
// spec.md §4.3. It enforces global name uniqueness (case-sensitive) and
// guarantees an entry never outlives its Session.
type userRegistry struct {
	mu    sync.RWMutex
	users map[string]*Session
}

func newUserRegistry() *userRegistry {
	return &userRegistry{users: make(map[string]*Session)}
}

// insertIfAbsent binds name to sess iff no active session already holds it.
// It returns false on conflict, leaving the registry unchanged.
func (r *userRegistry) insertIfAbsent(name string, sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[name]; exists {
		return false
	}
	r.users[name] = sess
	return true
}

// remove deletes name's entry if it still points at sess. Removal is a
// no-op if the name was never registered or was rebound to a different
// session (which cannot happen under the uniqueness invariant, but the
// check keeps the operation idempotent).
func (r *userRegistry) remove(name string, sess *Session) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.users[name]; ok && cur == sess {
		delete(r.users, name)
	}
}

// lookup returns the session currently bound to name, if any.
func (r *userRegistry) lookup(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.users[name]
	return sess, ok
}

// count returns the number of registered usernames.
func (r *userRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// snapshot returns a stable copy of the currently registered sessions, for
// fan-out during shutdown.
func (r *userRegistry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.users))
	for _, sess := range r.users {
		out = append(out, sess)
	}
	return out
}

// whisper delivers msg from sender to target, formatting the wire lines
// exactly as spec.md §4.3 dictates.
func (r *userRegistry) whisper(sender *Session, target, msg string) error {
	targetSess, ok := r.lookup(target)
	if !ok {
		return ErrUserOffline
	}
	// Best-effort: a failed send to the target does not fail the whisper
	// from the sender's point of view; the target's own worker will reap a
	// dead connection on its next I/O error.
	_ = targetSess.send(fmt.Sprintf("[WHISPER from %s]: %s", sender.Username(), msg))
	return nil
}
