// Package usage tracks per-user, per-day consumption: durable token/request
// budgets carried on the account record, and ephemeral feature counters
// (search, imagine, document and image analysis, pro-model calls) kept
// process-local. Feature counters are intentionally lost on restart; the
// token and request budget is not.
package usage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Aman-20/Telegram-bot/internal/database"
)

// Feature is one of the per-day limited capabilities.
type Feature string

const (
	FeatureSearch  Feature = "search"
	FeatureImagine Feature = "imagine"
	FeatureDoc     Feature = "doc"
	FeatureImage   Feature = "img"
	FeaturePro     Feature = "pro"
)

// Store persists the durable daily counters.
type Store interface {
	UpdateDailyUsage(ctx context.Context, acct *database.Account) error
}

// dayBucket holds one user's feature counters for a single calendar day.
type dayBucket struct {
	date   string
	counts map[Feature]int
}

// Ledger owns both counter families. All methods are safe for concurrent use.
type Ledger struct {
	store Store
	loc   *time.Location

	mu      sync.Mutex
	buckets *gocache.Cache

	now func() time.Time
}

func NewLedger(store Store, loc *time.Location) *Ledger {
	return &Ledger{
		store: store,
		loc:   loc,
		// Buckets self-expire well after the day they describe has passed.
		buckets: gocache.New(48*time.Hour, time.Hour),
		now:     time.Now,
	}
}

// SetClock overrides the ledger's clock. Tests only.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Ledger) today() string {
	return l.now().In(l.loc).Format("2006-01-02")
}

// TryConsume checks the feature counter against limit and increments it when
// under. Returns false, without mutating, when the limit is reached. The
// bucket is rebuilt empty whenever its stored date is not today.
func (l *Ledger) TryConsume(userID string, feature Feature, limit int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.bucketFor(userID)
	if bucket.counts[feature] >= limit {
		return false
	}
	bucket.counts[feature]++
	return true
}

// Snapshot returns a copy of the user's feature counters for today.
func (l *Ledger) Snapshot(userID string) map[Feature]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.bucketFor(userID)
	out := make(map[Feature]int, len(bucket.counts))
	for f, n := range bucket.counts {
		out[f] = n
	}
	return out
}

// bucketFor returns today's bucket for userID, discarding a stale one.
// Caller must hold l.mu.
func (l *Ledger) bucketFor(userID string) *dayBucket {
	today := l.today()
	if v, ok := l.buckets.Get(userID); ok {
		bucket := v.(*dayBucket)
		if bucket.date == today {
			return bucket
		}
	}
	bucket := &dayBucket{date: today, counts: make(map[Feature]int)}
	l.buckets.SetDefault(userID, bucket)
	return bucket
}

// EstimateTokens approximates the token count of text as
// ceil(wordCount * 1.3), counting whitespace-delimited words. A heuristic,
// not real tokenization; callers must not treat it as exact.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return (words*13 + 9) / 10
}

// Roll applies the lazy daily rollover to the account's durable counters and
// persists the zeroed values when anything changed.
func (l *Ledger) Roll(ctx context.Context, acct *database.Account) error {
	if acct.RollDay(l.now(), l.loc) {
		if err := l.store.UpdateDailyUsage(ctx, acct); err != nil {
			return fmt.Errorf("failed to persist daily rollover: %w", err)
		}
	}
	return nil
}

// CheckRequestBudget reports whether the account may spend one more request.
func (l *Ledger) CheckRequestBudget(acct *database.Account, limit int) bool {
	return acct.RequestsToday < int64(limit)
}

// TryReserveTokens reports whether amount more tokens fit under limit.
// The bound is strict (<): a user may consume up to but not including the
// limit in this pre-check.
func (l *Ledger) TryReserveTokens(acct *database.Account, amount, limit int) bool {
	return acct.TokensUsedToday+int64(amount) < int64(limit)
}

// WouldExceed is the post-response check, applied once actual output size is
// known; it uses > so a reply landing exactly on the limit still goes out.
func (l *Ledger) WouldExceed(acct *database.Account, amount, limit int) bool {
	return acct.TokensUsedToday+int64(amount) > int64(limit)
}

// Commit adds the spent tokens, counts the request, and persists. Called only
// after a successful provider response.
func (l *Ledger) Commit(ctx context.Context, acct *database.Account, tokens int) error {
	acct.TokensUsedToday += int64(tokens)
	acct.RequestsToday++

	if err := l.store.UpdateDailyUsage(ctx, acct); err != nil {
		return fmt.Errorf("failed to persist usage: %w", err)
	}
	return nil
}
