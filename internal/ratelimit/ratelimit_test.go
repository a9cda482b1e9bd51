package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func newTestLimiter() (*CooldownLimiter, *time.Time) {
	l := NewCooldownLimiter(5*time.Second, 30*time.Second, 15*time.Second)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := &now
	l.SetClock(func() time.Time { return *clock })
	return l, clock
}

func TestCheck_CooldownWindow(t *testing.T) {
	l, clock := newTestLimiter()

	if err := l.Check(DomainMessage, "u1"); err != nil {
		t.Fatalf("first Check() = %v, want nil", err)
	}

	// Immediately again: rejected with the whole window remaining.
	err := l.Check(DomainMessage, "u1")
	var limited *LimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("second Check() = %v, want LimitedError", err)
	}
	if limited.RetryAfter != 5 {
		t.Errorf("RetryAfter = %d, want 5", limited.RetryAfter)
	}
	if limited.Domain != DomainMessage {
		t.Errorf("Domain = %s, want %s", limited.Domain, DomainMessage)
	}

	// Partway through the window the reported wait shrinks, rounded up.
	*clock = clock.Add(2500 * time.Millisecond)
	err = l.Check(DomainMessage, "u1")
	if !errors.As(err, &limited) {
		t.Fatalf("mid-window Check() = %v, want LimitedError", err)
	}
	if limited.RetryAfter != 3 {
		t.Errorf("RetryAfter = %d, want 3 (ceil of 2.5s)", limited.RetryAfter)
	}

	// After the window has elapsed the action is allowed again.
	*clock = clock.Add(3 * time.Second)
	if err := l.Check(DomainMessage, "u1"); err != nil {
		t.Errorf("Check() after window = %v, want nil", err)
	}
}

func TestCheck_RejectionDoesNotExtendWait(t *testing.T) {
	l, clock := newTestLimiter()

	if err := l.Check(DomainMessage, "u1"); err != nil {
		t.Fatalf("first Check() = %v, want nil", err)
	}

	// Hammer the limiter during the cooldown; rejections must not move the
	// recorded timestamp.
	for i := 0; i < 4; i++ {
		*clock = clock.Add(time.Second)
		if err := l.Check(DomainMessage, "u1"); err == nil {
			t.Fatalf("Check() during cooldown = nil, want LimitedError")
		}
	}

	*clock = clock.Add(time.Second + time.Millisecond)
	if err := l.Check(DomainMessage, "u1"); err != nil {
		t.Errorf("Check() after original window = %v, want nil", err)
	}
}

func TestCheck_DomainsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()

	if err := l.Check(DomainMessage, "u1"); err != nil {
		t.Fatalf("message Check() = %v, want nil", err)
	}
	if err := l.Check(DomainMedia, "u1"); err != nil {
		t.Errorf("media Check() after message = %v, want nil", err)
	}
	if err := l.CheckCommand("u1", "search"); err != nil {
		t.Errorf("command Check() after message = %v, want nil", err)
	}
}

func TestCheckCommand_PerCommandBuckets(t *testing.T) {
	l, _ := newTestLimiter()

	if err := l.CheckCommand("u1", "search"); err != nil {
		t.Fatalf("CheckCommand(search) = %v, want nil", err)
	}
	if err := l.CheckCommand("u1", "imagine"); err != nil {
		t.Errorf("CheckCommand(imagine) = %v, want nil (independent of search)", err)
	}
	if err := l.CheckCommand("u1", "search"); err == nil {
		t.Error("repeated CheckCommand(search) = nil, want LimitedError")
	}
	if err := l.CheckCommand("u2", "search"); err != nil {
		t.Errorf("CheckCommand by other user = %v, want nil", err)
	}
}

func TestCheck_UsersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()

	if err := l.Check(DomainMessage, "u1"); err != nil {
		t.Fatalf("Check(u1) = %v, want nil", err)
	}
	if err := l.Check(DomainMessage, "u2"); err != nil {
		t.Errorf("Check(u2) = %v, want nil", err)
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter()

	_ = l.Check(DomainMessage, "u1")
	_ = l.Check(DomainMedia, "u1")
	_ = l.CheckCommand("u1", "search")
	_ = l.Check(DomainMessage, "u2")

	l.Reset("u1")

	if err := l.Check(DomainMessage, "u1"); err != nil {
		t.Errorf("Check(u1) after Reset = %v, want nil", err)
	}
	if err := l.CheckCommand("u1", "search"); err != nil {
		t.Errorf("CheckCommand(u1) after Reset = %v, want nil", err)
	}
	if err := l.Check(DomainMessage, "u2"); err == nil {
		t.Error("Check(u2) = nil, want LimitedError (Reset must not touch other users)")
	}
}
