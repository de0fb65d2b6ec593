package server

import (
	"fmt"
	"regexp"
	"sync"
)

// MaxRoomNameLength is the maximum length of a room name (spec.md §3).
const MaxRoomNameLength = 32

var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)

func validateRoomName(name string) bool {
	return roomNamePattern.MatchString(name)
}

// room is a named multicast group of sessions with best-effort fan-out
// (spec.md §3). Member order is preserved across join/leave so that
// broadcast fan-out within one call happens in a deterministic order.
type room struct {
	name    string
	members []*Session
}

func (r *room) indexOf(sess *Session) int {
	for i, m := range r.members {
		if m == sess {
			return i
		}
	}
	return -1
}

// roomRegistry is the thread-safe name -> room mapping described in
// spec.md §4.4. A single mutex guards room creation, membership, and
// broadcast fan-out, giving every room a total order of emitted messages
// per spec.md §5.
type roomRegistry struct {
	mu         sync.Mutex
	rooms      map[string]*room
	roomCap    int // max concurrent rooms (spec.md §4.4)
	sessionCap int // max members per room == global session cap (spec.md §3)
	log        eventSink
}

func newRoomRegistry(roomCap, sessionCap int, log eventSink) *roomRegistry {
	return &roomRegistry{
		rooms:      make(map[string]*room),
		roomCap:    roomCap,
		sessionCap: sessionCap,
		log:        log,
	}
}

// join adds sess to the named room, leaving its current room first if any.
// It returns nil on success, or one of ErrInvalidRoomName, ErrNoRoomSlot or
// ErrRoomFull; the caller sends the matching line to the session.
func (reg *roomRegistry) join(sess *Session, name string) error {
	if sess.CurrentRoom() != "" {
		reg.leave(sess)
	}

	if !validateRoomName(name) {
		return ErrInvalidRoomName
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[name]
	if !ok {
		if reg.roomCap > 0 && len(reg.rooms) >= reg.roomCap {
			return ErrNoRoomSlot
		}
		r = &room{name: name}
		reg.rooms[name] = r
	}

	if reg.sessionCap > 0 && len(r.members) >= reg.sessionCap {
		return ErrRoomFull
	}

	r.members = append(r.members, sess)
	sess.setCurrentRoom(name)

	reg.log.record(tagJoin, fmt.Sprintf("%s joined room %s", sess.Username(), name))
	return nil
}

// leave removes sess from its current room, deactivating the room if it
// becomes empty. It is a no-op (returning ErrNotInRoom) if the session has
// no current room.
func (reg *roomRegistry) leave(sess *Session) error {
	name := sess.CurrentRoom()
	if name == "" {
		return ErrNotInRoom
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[name]
	if !ok {
		// Room already gone (e.g. raced with shutdown); just clear state.
		sess.setCurrentRoom("")
		return nil
	}

	if idx := r.indexOf(sess); idx >= 0 {
		r.members = append(r.members[:idx], r.members[idx+1:]...)
	}
	sess.setCurrentRoom("")

	if len(r.members) == 0 {
		delete(reg.rooms, name)
	}

	reg.log.record(tagLeave, fmt.Sprintf("%s left room %s", sess.Username(), name))
	return nil
}

// broadcast fans msg out to every other member of sender's current room.
// Sends are best-effort per recipient: a failed write to one recipient
// never aborts delivery to the rest (spec.md §4.4).
func (reg *roomRegistry) broadcast(sender *Session, msg string) error {
	name := sender.CurrentRoom()
	if name == "" {
		return ErrNotInRoom
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[name]
	if !ok {
		return ErrNotInRoom
	}

	line := fmt.Sprintf("[%s] %s: %s", name, sender.Username(), msg)
	for _, member := range r.members {
		if member == sender {
			continue
		}
		_ = member.send(line)
	}

	reg.log.record(tagBroadcast, fmt.Sprintf("%s broadcast in room %s", sender.Username(), name))
	return nil
}

// memberCount returns the number of active rooms and the total number of
// memberships across them, reported to the metrics collector.
func (reg *roomRegistry) memberCount() (rooms, members int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rooms = len(reg.rooms)
	for _, r := range reg.rooms {
		members += len(r.members)
	}
	return rooms, members
}

// snapshot returns room name -> member usernames, for the admin surface.
func (reg *roomRegistry) snapshot() map[string][]string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make(map[string][]string, len(reg.rooms))
	for name, r := range reg.rooms {
		names := make([]string, 0, len(r.members))
		for _, m := range r.members {
			names = append(names, m.Username())
		}
		out[name] = names
	}
	return out
}
