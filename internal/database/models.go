package database

import (
	"time"
)

// Message is one turn of a stored conversation.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Account represents one chat identity and its durable quota state.
//
// ChatID is string-typed so identifiers larger than int53 survive round-trips
// through JSON tooling unchanged.
type Account struct {
	ChatID          string     `db:"chat_id" json:"chat_id"`
	ApprovedUntil   *time.Time `db:"approved_until" json:"approved_until,omitempty"`
	Messages        []Message  `db:"messages" json:"messages"`
	RequestsToday   int64      `db:"requests_today" json:"requests_today"`
	LastResetDate   time.Time  `db:"last_reset_date" json:"last_reset_date"`
	TokensUsedToday int64      `db:"tokens_used_today" json:"tokens_used_today"`
	TokenResetDate  time.Time  `db:"token_reset_date" json:"token_reset_date"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsApproved reports whether the account carries an unexpired approval grant.
func (a *Account) IsApproved(now time.Time) bool {
	if a == nil || a.ApprovedUntil == nil {
		return false
	}
	return !now.After(*a.ApprovedUntil)
}

// SameCalendarDay compares two instants at calendar-day granularity in loc.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// RollDay lazily zeroes the daily counters whose stored reset date is not
// today. Must be applied before any read or write of the counters. Returns
// true if anything changed and the account needs persisting.
func (a *Account) RollDay(now time.Time, loc *time.Location) bool {
	changed := false
	if !SameCalendarDay(a.LastResetDate, now, loc) {
		a.RequestsToday = 0
		a.LastResetDate = now
		changed = true
	}
	if !SameCalendarDay(a.TokenResetDate, now, loc) {
		a.TokensUsedToday = 0
		a.TokenResetDate = now
		changed = true
	}
	return changed
}

// AppendMessage appends a turn and evicts the oldest entries beyond limit.
func (a *Account) AppendMessage(role, text string, now time.Time, limit int) {
	a.Messages = append(a.Messages, Message{Role: role, Text: text, Timestamp: now})
	if limit > 0 && len(a.Messages) > limit {
		a.Messages = a.Messages[len(a.Messages)-limit:]
	}
}

// RecentMessages returns the last n messages in chronological order.
func (a *Account) RecentMessages(n int) []Message {
	if n <= 0 || len(a.Messages) == 0 {
		return nil
	}
	if len(a.Messages) > n {
		return a.Messages[len(a.Messages)-n:]
	}
	return a.Messages
}
