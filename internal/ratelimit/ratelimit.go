// Package ratelimit implements per-user sliding cooldowns for plain messages,
// media uploads, and named commands. The three domains are independent:
// exhausting one never blocks the others.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Domain identifies an independent cooldown bucket.
type Domain string

const (
	DomainMessage Domain = "message"
	DomainMedia   Domain = "media"
	DomainCommand Domain = "command"
)

// LimitedError reports a rejected action and how long to wait.
type LimitedError struct {
	Domain     Domain
	RetryAfter int // seconds, rounded up
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited (%s): retry in %ds", e.Domain, e.RetryAfter)
}

// CooldownLimiter tracks the last allowed action per key in each domain.
// Timestamps are recorded only on allow, so a rejected burst cannot extend
// the wait indefinitely.
type CooldownLimiter struct {
	mu      sync.Mutex
	windows map[Domain]time.Duration
	last    map[string]time.Time

	now func() time.Time
}

func NewCooldownLimiter(message, media, command time.Duration) *CooldownLimiter {
	return &CooldownLimiter{
		windows: map[Domain]time.Duration{
			DomainMessage: message,
			DomainMedia:   media,
			DomainCommand: command,
		},
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// SetClock overrides the limiter's clock. Tests only.
func (l *CooldownLimiter) SetClock(now func() time.Time) {
	l.now = now
}

// Check gates a plain message or media upload for userID. Returns nil and
// records the action when allowed, or a *LimitedError.
func (l *CooldownLimiter) Check(domain Domain, userID string) error {
	return l.check(domain, string(domain)+":"+userID)
}

// CheckCommand gates a named command; each (user, command) pair cools down
// independently.
func (l *CooldownLimiter) CheckCommand(userID, command string) error {
	return l.check(DomainCommand, string(DomainCommand)+":"+userID+":"+command)
}

func (l *CooldownLimiter) check(domain Domain, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.windows[domain]
	now := l.now()

	if last, ok := l.last[key]; ok {
		remaining := window - now.Sub(last)
		if remaining > 0 {
			return &LimitedError{
				Domain:     domain,
				RetryAfter: int((remaining + time.Second - 1) / time.Second),
			}
		}
	}

	l.last[key] = now
	return nil
}

// Reset forgets all recorded timestamps for a user across every domain.
func (l *CooldownLimiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.last {
		if key == string(DomainMessage)+":"+userID || key == string(DomainMedia)+":"+userID {
			delete(l.last, key)
			continue
		}
		prefix := string(DomainCommand) + ":" + userID + ":"
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(l.last, key)
		}
	}
}
