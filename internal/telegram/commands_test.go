package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Aman-20/Telegram-bot/internal/database"
	"github.com/Aman-20/Telegram-bot/internal/usage"
)

func TestBroadcast(t *testing.T) {
	accounts := []*database.Account{
		{ChatID: "1"}, // sender
		{ChatID: "2"},
		{ChatID: "3"},
		{ChatID: "not-a-chat-id"},
		{ChatID: "4"},
	}

	var delivered []int64
	sent, failed := broadcast(accounts, 1, "📢 hello", func(chatID int64, text string) error {
		if chatID == 3 {
			return errors.New("blocked by user")
		}
		delivered = append(delivered, chatID)
		return nil
	})

	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}

	// One failing recipient must not stop delivery to the rest.
	if len(delivered) != 2 || delivered[0] != 2 || delivered[1] != 4 {
		t.Errorf("delivered = %v, want [2 4]", delivered)
	}
}

func TestBroadcastSkipsSender(t *testing.T) {
	accounts := []*database.Account{{ChatID: "7"}}

	sent, failed := broadcast(accounts, 7, "hi", func(chatID int64, text string) error {
		t.Errorf("broadcast delivered to the sender (%d)", chatID)
		return nil
	})
	if sent != 0 || failed != 0 {
		t.Errorf("sent, failed = %d, %d, want 0, 0", sent, failed)
	}
}

func TestUsageReport(t *testing.T) {
	accounts := []*database.Account{
		{ChatID: "11", RequestsToday: 3, TokensUsedToday: 420},
		{ChatID: "22"},
	}
	snapshots := map[string]map[usage.Feature]int{
		"11": {usage.FeatureSearch: 2, usage.FeaturePro: 1},
		"22": {},
	}

	report := usageReport(accounts, func(userID string) map[usage.Feature]int {
		return snapshots[userID]
	})

	if !strings.Contains(report, "2 accounts") {
		t.Errorf("report missing account count: %q", report)
	}
	if !strings.Contains(report, "11: 3 req, 420 tokens | search 2, imagine 0, docs 0, images 0, pro 1") {
		t.Errorf("report missing first user line: %q", report)
	}
	if !strings.Contains(report, "22: 0 req, 0 tokens") {
		t.Errorf("report missing second user line: %q", report)
	}
}

func TestUsageReportEmpty(t *testing.T) {
	report := usageReport(nil, func(string) map[usage.Feature]int { return nil })
	if report != "No accounts yet." {
		t.Errorf("usageReport(nil) = %q", report)
	}
}

func TestMarkCallbackProcessed(t *testing.T) {
	b := &Bot{callbackSeen: make(map[string]time.Time)}

	if !b.markCallbackProcessed("cb1") {
		t.Error("first delivery must be processed")
	}
	if b.markCallbackProcessed("cb1") {
		t.Error("duplicate delivery must be dropped")
	}

	b.callbackSeen["stale"] = time.Now().Add(-2 * time.Minute)
	if !b.markCallbackProcessed("cb2") {
		t.Error("new callback must be processed")
	}
	if _, ok := b.callbackSeen["stale"]; ok {
		t.Error("stale entries must be evicted")
	}
}
