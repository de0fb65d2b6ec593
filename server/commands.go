package server

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// dispatch parses one Active-state command line and runs its handler
// (spec.md §4.2). It returns the command name for metrics and whether the
// session must transition to Terminated.
func (s *Session) dispatch(line string) (cmd string, terminate bool) {
	fields := strings.SplitN(line, " ", 2)
	name := fields[0]
	var rest string
	if len(fields) == 2 {
		rest = fields[1]
	}

	switch name {
	case "/join":
		s.handleJoin(strings.TrimSpace(rest))
		return "join", false
	case "/leave":
		s.handleLeave()
		return "leave", false
	case "/broadcast":
		s.handleBroadcast(rest)
		return "broadcast", false
	case "/whisper":
		s.handleWhisper(rest)
		return "whisper", false
	case "/sendfile":
		s.handleSendfile(rest)
		return "sendfile", false
	case "/exit":
		_ = s.send("[INFO] Goodbye!\n")
		return "exit", true
	default:
		_ = s.send("[ERROR] Unknown command. Type a valid command.\n")
		return "unknown", false
	}
}

func (s *Session) handleJoin(room string) {
	err := s.server.rooms.join(s, room)
	switch err {
	case nil:
		s.server.metrics.RecordRoomCount(s.server.rooms.memberCount())
		_ = s.send("[SUCCESS] Joined room '" + room + "'\n")
	case ErrInvalidRoomName:
		_ = s.send("[ERROR] Invalid room name. Use alphanumeric characters, max 32 chars.\n")
	case ErrNoRoomSlot:
		_ = s.send("[ERROR] Unable to join room.\n")
	case ErrRoomFull:
		_ = s.send("[ERROR] Room is full.\n")
	default:
		_ = s.send("[ERROR] Unable to join room.\n")
	}
}

func (s *Session) handleLeave() {
	name := s.CurrentRoom()
	err := s.server.rooms.leave(s)
	switch err {
	case nil:
		s.server.metrics.RecordRoomCount(s.server.rooms.memberCount())
		_ = s.send("[SUCCESS] Left room '" + name + "'\n")
	case ErrNotInRoom:
		_ = s.send("[ERROR] You are not in a room.\n")
	default:
		_ = s.send("[ERROR] You are not in a room.\n")
	}
}

func (s *Session) handleBroadcast(msg string) {
	if msg == "" {
		_ = s.send("[ERROR] Missing arguments.\n")
		return
	}
	err := s.server.rooms.broadcast(s, msg)
	switch err {
	case nil:
		_ = s.send("[SUCCESS] Message broadcasted.\n")
	case ErrNotInRoom:
		_ = s.send("[ERROR] You are not in a room.\n")
	default:
		_ = s.send("[ERROR] You are not in a room.\n")
	}
}

func (s *Session) handleWhisper(rest string) {
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		_ = s.send("[ERROR] Missing arguments.\n")
		return
	}
	target, msg := parts[0], parts[1]

	err := s.server.users.whisper(s, target, msg)
	switch err {
	case nil:
		s.server.eventLog.record(tagWhisper, s.username+" whispered to "+target)
		_ = s.send("[SUCCESS] Whisper sent.\n")
	case ErrUserOffline:
		_ = s.send("[ERROR] User not found or offline.\n")
	default:
		_ = s.send("[ERROR] User not found or offline.\n")
	}
}

// handleSendfile implements the five-step /sendfile contract of spec.md
// §4.5 in order: extension check, receiver lookup, size validation, then
// the non-blocking-then-blocking slot acquisition, finishing with a
// FILE-QUEUE log entry carrying the advisory queue size.
func (s *Session) handleSendfile(rest string) {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		_ = s.send("[ERROR] Missing arguments.\n")
		return
	}
	path, target := parts[0], parts[1]

	if err := validateSendfileType(path); errors.Is(err, ErrInvalidFileType) {
		_ = s.send("[ERROR] Invalid file type. Allowed: .txt, .pdf, .jpg, .png\n")
		return
	}

	if _, ok := s.server.users.lookup(target); !ok {
		_ = s.send("[ERROR] Target user not found or offline.\n")
		return
	}

	size, err := s.server.fileResolver.Stat(path)
	if err != nil {
		s.server.eventLog.record(tagError, "stat failed for "+path+": "+err.Error())
		_ = s.send("[ERROR] Unable to read file.\n")
		return
	}
	if err := validateSendfileSize(size); errors.Is(err, ErrFileTooLarge) {
		s.server.eventLog.record(tagRejected, s.username+" oversize file "+path+" ("+strconv.FormatInt(size, 10)+" bytes)")
		_ = s.send("[ERROR] File exceeds size limit (3MB).\n")
		return
	}

	ft := &FileTransfer{
		Filename:   filepath.Base(path),
		Sender:     s.username,
		Receiver:   target,
		Size:       size,
		EnqueuedAt: time.Now(),
	}

	immediate := s.server.uploads.tryReserveSlot()
	if !immediate {
		_ = s.send("[INFO] Upload queue full. Waiting...\n")
		_ = s.server.uploads.reserveSlot(context.Background())
	}

	queueSize := s.server.uploads.push(ft)
	s.server.eventLog.record(tagFileQueue, s.username+" queued "+ft.Filename+" for "+target+" (queue size "+strconv.Itoa(queueSize)+")")

	if immediate {
		_ = s.send("[SUCCESS] File added to upload queue.\n")
	} else {
		_ = s.send("[SUCCESS] File queued for upload.\n")
	}
}
