package telegram

import (
	"errors"
	"strings"
	"testing"

	"github.com/Aman-20/Telegram-bot/internal/access"
	"github.com/Aman-20/Telegram-bot/internal/chat"
	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/llm"
	"github.com/Aman-20/Telegram-bot/internal/ratelimit"
)

func TestSplitMessage(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := splitMessage("hello", 4000)
		if len(chunks) != 1 || chunks[0] != "hello" {
			t.Errorf("splitMessage() = %v, want [hello]", chunks)
		}
	})

	t.Run("chunks stay under the limit", func(t *testing.T) {
		text := strings.Repeat("a", 9500)
		chunks := splitMessage(text, 4000)
		if len(chunks) != 3 {
			t.Fatalf("got %d chunks, want 3", len(chunks))
		}
		total := 0
		for i, chunk := range chunks {
			if n := len([]rune(chunk)); n > 4000 {
				t.Errorf("chunk %d has %d runes", i, n)
			}
			total += len(chunk)
		}
		if total != 9500 {
			t.Errorf("chunks lost content: total %d, want 9500", total)
		}
	})

	t.Run("prefers newline boundaries", func(t *testing.T) {
		text := strings.Repeat("b", 3000) + "\n" + strings.Repeat("c", 2000)
		chunks := splitMessage(text, 4000)
		if len(chunks) != 2 {
			t.Fatalf("got %d chunks, want 2", len(chunks))
		}
		if strings.Contains(chunks[0], "c") {
			t.Errorf("first chunk crossed the newline boundary")
		}
		if strings.HasPrefix(chunks[1], "\n") {
			t.Errorf("separator newline leaked into second chunk")
		}
	})

	t.Run("multibyte text splits on rune boundaries", func(t *testing.T) {
		text := strings.Repeat("日", 5000)
		chunks := splitMessage(text, 4000)
		for i, chunk := range chunks {
			if !strings.HasPrefix(chunk, "日") {
				t.Errorf("chunk %d broke a rune: %q", i, chunk[:4])
			}
		}
	})
}

func TestErrorMessage(t *testing.T) {
	b := &Bot{}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not approved", &access.DeniedError{Reason: access.ReasonNotApproved}, consts.MsgNoAccess},
		{"expired", &access.DeniedError{Reason: access.ReasonExpired}, consts.MsgAccessExpired},
		{"rate limited", &ratelimit.LimitedError{Domain: ratelimit.DomainMessage, RetryAfter: 7}, "⏳ Please wait 7 seconds before trying again."},
		{"request quota", &chat.QuotaExceededError{Feature: "request", Limit: 50}, "🚫 You have reached your daily limit of 50 requests. Try again tomorrow."},
		{"search quota", &chat.QuotaExceededError{Feature: "search", Limit: 5}, "🚫 You have reached today's search limit (5). Try again tomorrow."},
		{"token limit", chat.ErrTokenLimitExceeded, "🚫 You have reached your daily token limit. Try again tomorrow."},
		{"model unavailable", &llm.UnavailableError{ModelID: "claude"}, consts.MsgModelUnavailable},
		{"pro limit", &llm.ProLimitError{Limit: 5}, "🚫 The pro model allows 5 requests per day. Switch models with /setmodel."},
		{"unknown", errors.New("pq: connection refused"), consts.MsgGenericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.errorMessage(tt.err); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLink(t *testing.T) {
	for _, text := range []string{"https://example.com", "http://x.com join now", "  HTTPS://caps.example "} {
		if !isLink(text) {
			t.Errorf("isLink(%q) = false, want true", text)
		}
	}
	for _, text := range []string{"check https://example.com out", "plain text", "httpserver setup"} {
		if isLink(text) {
			t.Errorf("isLink(%q) = true, want false", text)
		}
	}
}
