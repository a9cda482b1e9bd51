package usage

import (
	"context"
	"testing"
	"time"

	"github.com/Aman-20/Telegram-bot/internal/database"
)

type fakeStore struct {
	updates int
}

func (s *fakeStore) UpdateDailyUsage(_ context.Context, _ *database.Account) error {
	s.updates++
	return nil
}

func newTestLedger() (*Ledger, *fakeStore, *time.Time) {
	store := &fakeStore{}
	l := NewLedger(store, time.UTC)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := &now
	l.SetClock(func() time.Time { return *clock })
	return l, store, clock
}

func TestTryConsume_Limit(t *testing.T) {
	l, _, _ := newTestLedger()

	const limit = 3
	allowed := 0
	for i := 0; i < limit*2; i++ {
		if l.TryConsume("u1", FeatureSearch, limit) {
			allowed++
		}
	}

	if allowed != limit {
		t.Errorf("allowed %d consumptions, want %d", allowed, limit)
	}
	if got := l.Snapshot("u1")[FeatureSearch]; got != limit {
		t.Errorf("counter = %d, want %d (rejections must not mutate)", got, limit)
	}
}

func TestTryConsume_FeaturesIndependent(t *testing.T) {
	l, _, _ := newTestLedger()

	for i := 0; i < 3; i++ {
		l.TryConsume("u1", FeatureSearch, 3)
	}
	if !l.TryConsume("u1", FeatureImagine, 3) {
		t.Error("TryConsume(imagine) = false after search exhausted, want true")
	}
	if !l.TryConsume("u2", FeatureSearch, 3) {
		t.Error("TryConsume by other user = false, want true")
	}
}

func TestTryConsume_DayRollover(t *testing.T) {
	l, _, clock := newTestLedger()

	for i := 0; i < 3; i++ {
		l.TryConsume("u1", FeatureDoc, 3)
	}
	if l.TryConsume("u1", FeatureDoc, 3) {
		t.Fatal("TryConsume = true at limit, want false")
	}

	// Next calendar day: the bucket resets exactly once.
	*clock = clock.Add(24 * time.Hour)
	if !l.TryConsume("u1", FeatureDoc, 3) {
		t.Error("TryConsume = false after rollover, want true")
	}
	if got := l.Snapshot("u1")[FeatureDoc]; got != 1 {
		t.Errorf("counter after rollover = %d, want 1", got)
	}

	// Later the same day: no second reset.
	*clock = clock.Add(2 * time.Hour)
	if got := l.Snapshot("u1")[FeatureDoc]; got != 1 {
		t.Errorf("counter later that day = %d, want 1", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "one word", text: "hello", want: 2},    // ceil(1*1.3)
		{name: "two words", text: "hello there", want: 3}, // ceil(2*1.3)
		{name: "ten words", text: "a b c d e f g h i j", want: 13},
		{name: "extra whitespace", text: "  spaced \t out\nwords  ", want: 4}, // ceil(3*1.3)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenBudget(t *testing.T) {
	l, _, _ := newTestLedger()
	acct := &database.Account{ChatID: "1", TokensUsedToday: 90}

	tests := []struct {
		name   string
		amount int
		want   bool
	}{
		{name: "well under limit", amount: 5, want: true},
		{name: "reaching limit exactly is rejected", amount: 10, want: false}, // strict <
		{name: "one under limit", amount: 9, want: true},
		{name: "over limit", amount: 50, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.TryReserveTokens(acct, tt.amount, 100); got != tt.want {
				t.Errorf("TryReserveTokens(%d) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}

	t.Run("post-response check uses >", func(t *testing.T) {
		if l.WouldExceed(acct, 10, 100) {
			t.Error("WouldExceed(landing exactly on limit) = true, want false")
		}
		if !l.WouldExceed(acct, 11, 100) {
			t.Error("WouldExceed(one past limit) = false, want true")
		}
	})
}

func TestRollAndCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("stale account is rolled and persisted", func(t *testing.T) {
		l, store, clock := newTestLedger()
		acct := &database.Account{
			ChatID:          "1",
			RequestsToday:   20,
			LastResetDate:   clock.Add(-24 * time.Hour),
			TokensUsedToday: 5000,
			TokenResetDate:  clock.Add(-24 * time.Hour),
		}

		if err := l.Roll(ctx, acct); err != nil {
			t.Fatalf("Roll() error = %v", err)
		}
		if acct.RequestsToday != 0 || acct.TokensUsedToday != 0 {
			t.Errorf("counters after Roll: requests=%d tokens=%d, want 0/0",
				acct.RequestsToday, acct.TokensUsedToday)
		}
		if store.updates != 1 {
			t.Errorf("store updates = %d, want 1", store.updates)
		}
	})

	t.Run("fresh account is not persisted", func(t *testing.T) {
		l, store, clock := newTestLedger()
		acct := &database.Account{
			ChatID:         "1",
			LastResetDate:  *clock,
			TokenResetDate: *clock,
		}

		if err := l.Roll(ctx, acct); err != nil {
			t.Fatalf("Roll() error = %v", err)
		}
		if store.updates != 0 {
			t.Errorf("store updates = %d, want 0", store.updates)
		}
	})

	t.Run("commit adds tokens and one request", func(t *testing.T) {
		l, store, clock := newTestLedger()
		acct := &database.Account{
			ChatID:          "1",
			RequestsToday:   2,
			LastResetDate:   *clock,
			TokensUsedToday: 100,
			TokenResetDate:  *clock,
		}

		if err := l.Commit(ctx, acct, 42); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if acct.TokensUsedToday != 142 {
			t.Errorf("TokensUsedToday = %d, want 142", acct.TokensUsedToday)
		}
		if acct.RequestsToday != 3 {
			t.Errorf("RequestsToday = %d, want 3", acct.RequestsToday)
		}
		if store.updates != 1 {
			t.Errorf("store updates = %d, want 1", store.updates)
		}
	})
}

func TestCheckRequestBudget(t *testing.T) {
	l, _, _ := newTestLedger()

	if !l.CheckRequestBudget(&database.Account{RequestsToday: 49}, 50) {
		t.Error("CheckRequestBudget(49/50) = false, want true")
	}
	if l.CheckRequestBudget(&database.Account{RequestsToday: 50}, 50) {
		t.Error("CheckRequestBudget(50/50) = true, want false")
	}
}
