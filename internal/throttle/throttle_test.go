package throttle

import "testing"

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		rate      float64
		expectNil bool
	}{
		{"valid rate", 10, false},
		{"zero rate (unlimited)", 0, true},
		{"negative rate (unlimited)", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rate, 5)
			if tt.expectNil && l != nil {
				t.Errorf("expected nil limiter for rate %v, got non-nil", tt.rate)
			}
			if !tt.expectNil && l == nil {
				t.Errorf("expected non-nil limiter for rate %v, got nil", tt.rate)
			}
		})
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	t.Parallel()
	var l *Limiter
	for i := 0; i < 1000; i++ {
		if !l.Allow("any") {
			t.Fatal("nil limiter must always allow")
		}
	}
}

func TestAllowEnforcesBurst(t *testing.T) {
	t.Parallel()
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("sess-1") {
			t.Fatalf("expected request %d within burst to be allowed", i)
		}
	}
	if l.Allow("sess-1") {
		t.Fatal("expected request beyond burst to be denied")
	}
}

func TestAllowIsPerKey(t *testing.T) {
	t.Parallel()
	l := New(1, 1)

	if !l.Allow("a") {
		t.Fatal("expected first request for key a to be allowed")
	}
	if !l.Allow("b") {
		t.Fatal("expected first request for key b to be allowed (independent bucket)")
	}
	if l.Allow("a") {
		t.Fatal("expected second immediate request for key a to be denied")
	}
}

func TestForgetDropsBucket(t *testing.T) {
	t.Parallel()
	l := New(1, 1)

	l.Allow("sess-1")
	if l.Allow("sess-1") {
		t.Fatal("expected bucket to be exhausted before Forget")
	}

	l.Forget("sess-1")

	if !l.Allow("sess-1") {
		t.Fatal("expected a fresh bucket to be allowed immediately after Forget")
	}
}
