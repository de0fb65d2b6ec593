package server

import "testing"

func TestValidateRoomName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ok   bool
	}{
		{"general", true},
		{"Room1", true},
		{"", false},
		{"has space", false},
		{"way-too-long-room-name-that-exceeds-the-limit-of-32-chars", false},
	}
	for _, tt := range tests {
		if got := validateRoomName(tt.name); got != tt.ok {
			t.Errorf("validateRoomName(%q) = %v, want %v", tt.name, got, tt.ok)
		}
	}
}

func TestRoomJoinAndLeave(t *testing.T) {
	t.Parallel()
	reg := newRoomRegistry(10, 15, discardSink{})
	a := newTestSession(t)
	a.username = "alice"

	if err := reg.join(a, "general"); err != nil {
		t.Fatalf("join: unexpected error %v", err)
	}
	if a.CurrentRoom() != "general" {
		t.Fatalf("CurrentRoom() = %q, want general", a.CurrentRoom())
	}

	rooms, members := reg.memberCount()
	if rooms != 1 || members != 1 {
		t.Fatalf("memberCount() = %d, %d; want 1, 1", rooms, members)
	}

	if err := reg.leave(a); err != nil {
		t.Fatalf("leave: unexpected error %v", err)
	}
	if a.CurrentRoom() != "" {
		t.Fatalf("CurrentRoom() after leave = %q, want empty", a.CurrentRoom())
	}

	rooms, members = reg.memberCount()
	if rooms != 0 || members != 0 {
		t.Fatalf("memberCount() after leave = %d, %d; want 0, 0 (room should deactivate)", rooms, members)
	}
}

func TestRoomLeaveWhenNotInRoom(t *testing.T) {
	t.Parallel()
	reg := newRoomRegistry(10, 15, discardSink{})
	a := newTestSession(t)

	if err := reg.leave(a); err != ErrNotInRoom {
		t.Fatalf("leave() with no room = %v, want ErrNotInRoom", err)
	}
}

func TestRoomSwitchLeavesPrevious(t *testing.T) {
	t.Parallel()
	reg := newRoomRegistry(10, 15, discardSink{})
	a := newTestSession(t)
	a.username = "alice"

	fatalIfErr(t, reg.join(a, "roomA"), "join roomA")
	fatalIfErr(t, reg.join(a, "roomB"), "join roomB")

	if a.CurrentRoom() != "roomB" {
		t.Fatalf("CurrentRoom() = %q, want roomB", a.CurrentRoom())
	}
	rooms, _ := reg.memberCount()
	if rooms != 1 {
		t.Fatalf("expected roomA to be deactivated after switch, memberCount rooms = %d", rooms)
	}
}

func TestRoomCapRejectsOverflow(t *testing.T) {
	t.Parallel()
	reg := newRoomRegistry(1, 15, discardSink{})
	a := newTestSession(t)
	b := newTestSession(t)
	a.username, b.username = "alice", "bob"

	fatalIfErr(t, reg.join(a, "roomA"), "join roomA")
	if err := reg.join(b, "roomB"); err != ErrNoRoomSlot {
		t.Fatalf("join beyond room cap = %v, want ErrNoRoomSlot", err)
	}
}

func TestRoomMemberCapRejectsOverflow(t *testing.T) {
	t.Parallel()
	reg := newRoomRegistry(10, 1, discardSink{})
	a := newTestSession(t)
	b := newTestSession(t)
	a.username, b.username = "alice", "bob"

	fatalIfErr(t, reg.join(a, "roomA"), "join roomA")
	if err := reg.join(b, "roomA"); err != ErrRoomFull {
		t.Fatalf("join full room = %v, want ErrRoomFull", err)
	}
}

func TestBroadcastInRoomSucceeds(t *testing.T) {
	t.Parallel()
	reg := newRoomRegistry(10, 15, discardSink{})
	a, b, c := newTestSession(t), newTestSession(t), newTestSession(t)
	a.username, b.username, c.username = "a", "b", "c"

	for _, sess := range []*Session{a, b, c} {
		fatalIfErr(t, reg.join(sess, "room1"), "join room1")
	}

	if err := reg.broadcast(a, "hi"); err != nil {
		t.Fatalf("broadcast: unexpected error %v", err)
	}
	// newTestSession drains writes in the background so we can't directly
	// assert received bytes here without a dedicated capturing conn; the
	// absence of a panic/deadlock and the nil error cover the fan-out path.
	// Exact line content for a recipient is covered by
	// TestIntegrationBroadcastFanOut; fan-out order across several
	// recipients and sender exclusion are not asserted.
}
