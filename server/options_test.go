package server

import (
	"testing"
	"time"
)

func TestNewServerDefaults(t *testing.T) {
	t.Parallel()
	s, err := NewServer(":0")
	fatalIfErr(t, err, "NewServer")

	if s.sessionCap != DefaultSessionCap {
		t.Errorf("sessionCap = %d, want %d", s.sessionCap, DefaultSessionCap)
	}
	if s.roomCap != DefaultRoomCap {
		t.Errorf("roomCap = %d, want %d", s.roomCap, DefaultRoomCap)
	}
	if s.queueCapacity != UploadQueueCapacity {
		t.Errorf("queueCapacity = %d, want %d", s.queueCapacity, UploadQueueCapacity)
	}
	if s.transferDelay != DefaultTransferDelay {
		t.Errorf("transferDelay = %v, want %v", s.transferDelay, DefaultTransferDelay)
	}
	if s.throttle != nil {
		t.Error("throttle should be nil when command rate is unset")
	}
	if _, ok := s.eventLog.(discardSink); !ok {
		t.Errorf("eventLog = %T, want discardSink", s.eventLog)
	}
}

func TestWithSessionCapRejectsNonPositive(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, -1} {
		if _, err := NewServer(":0", WithSessionCap(n)); err == nil {
			t.Errorf("WithSessionCap(%d): expected error", n)
		}
	}
}

func TestWithRoomCapRejectsNonPositive(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, -1} {
		if _, err := NewServer(":0", WithRoomCap(n)); err == nil {
			t.Errorf("WithRoomCap(%d): expected error", n)
		}
	}
}

func TestWithQueueCapacityRejectsNonPositive(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, -1} {
		if _, err := NewServer(":0", WithQueueCapacity(n)); err == nil {
			t.Errorf("WithQueueCapacity(%d): expected error", n)
		}
	}
}

func TestWithCommandRateLimitEnablesThrottle(t *testing.T) {
	t.Parallel()
	s, err := NewServer(":0", WithCommandRateLimit(5, 2))
	fatalIfErr(t, err, "NewServer")
	if s.throttle == nil {
		t.Fatal("expected a non-nil throttle when command rate > 0")
	}
}

func TestWithTransferDelayAndShutdownDrainOverride(t *testing.T) {
	t.Parallel()
	s, err := NewServer(":0", WithTransferDelay(0), WithShutdownDrain(time.Second))
	fatalIfErr(t, err, "NewServer")
	if s.transferDelay != 0 {
		t.Errorf("transferDelay = %v, want 0", s.transferDelay)
	}
	if s.shutdownDrain != time.Second {
		t.Errorf("shutdownDrain = %v, want 1s", s.shutdownDrain)
	}
}

type stubResolver struct {
	size int64
	err  error
}

func (r stubResolver) Stat(string) (int64, error) { return r.size, r.err }

func TestWithFileResolverOverride(t *testing.T) {
	t.Parallel()
	s, err := NewServer(":0", WithFileResolver(stubResolver{size: 42}))
	fatalIfErr(t, err, "NewServer")
	size, err := s.fileResolver.Stat("anything")
	fatalIfErr(t, err, "Stat")
	if size != 42 {
		t.Errorf("Stat size = %d, want 42", size)
	}
}
