package server

import "errors"

// Sentinel errors returned by server and session operations. Callers should
// compare with errors.Is rather than matching on message text.
var (
	// ErrServerClosed is returned by Serve and ListenAndServe once the
	// server has stopped accepting new connections.
	ErrServerClosed = errors.New("chatcore: server closed")

	// ErrServerFull is returned when the accept loop rejects a connection
	// because the session cap has been reached.
	ErrServerFull = errors.New("chatcore: server full")

	// ErrUsernameTaken is returned when claiming a name that is already
	// bound to an active session.
	ErrUsernameTaken = errors.New("chatcore: username already taken")

	// ErrUserOffline is returned when a whisper target cannot be found in
	// the user registry.
	ErrUserOffline = errors.New("chatcore: user not found or offline")

	// ErrInvalidUsername is returned when a candidate username fails the
	// length/charset validation in spec.md §3.
	ErrInvalidUsername = errors.New("chatcore: invalid username")

	// ErrInvalidRoomName is returned when a candidate room name fails the
	// length/charset validation in spec.md §3.
	ErrInvalidRoomName = errors.New("chatcore: invalid room name")

	// ErrNoRoomSlot is returned when the room cap is reached and no new room
	// can be allocated.
	ErrNoRoomSlot = errors.New("chatcore: no room slot available")

	// ErrRoomFull is returned when a room's member count is at the session
	// cap.
	ErrRoomFull = errors.New("chatcore: room is full")

	// ErrNotInRoom is returned by leave/broadcast when the session has no
	// current room.
	ErrNotInRoom = errors.New("chatcore: not in a room")

	// ErrInvalidFileType is returned when a sendfile extension is not on the
	// allow-list.
	ErrInvalidFileType = errors.New("chatcore: invalid file type")

	// ErrFileTooLarge is returned when a sendfile payload exceeds the size
	// limit.
	ErrFileTooLarge = errors.New("chatcore: file exceeds size limit")
)
