package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Aman-20/Telegram-bot/internal/database"
)

type fakeStore struct {
	accounts map[string]*database.Account
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]*database.Account)}
}

func (s *fakeStore) GetAccount(_ context.Context, chatID string) (*database.Account, error) {
	return s.accounts[chatID], nil
}

func (s *fakeStore) CreateAccount(_ context.Context, chatID string) (*database.Account, error) {
	if acct, ok := s.accounts[chatID]; ok {
		return acct, nil
	}
	acct := &database.Account{ChatID: chatID}
	s.accounts[chatID] = acct
	return acct, nil
}

func (s *fakeStore) SaveMessages(_ context.Context, chatID string, messages []database.Message) error {
	acct, ok := s.accounts[chatID]
	if !ok {
		return errors.New("no such account")
	}
	acct.Messages = messages
	return nil
}

func TestAppendTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account on first turn", func(t *testing.T) {
		store := newFakeStore()
		c := NewConversationStore(store, 10)

		if err := c.AppendTurn(ctx, "u1", "user", "hello"); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
		acct := store.accounts["u1"]
		if acct == nil || len(acct.Messages) != 1 {
			t.Fatalf("expected 1 stored message, got %+v", acct)
		}
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		c := NewConversationStore(newFakeStore(), 10)
		if err := c.AppendTurn(ctx, "u1", "bot", "hello"); err == nil {
			t.Error("AppendTurn(role=bot) = nil, want error")
		}
	})

	t.Run("eviction beyond cap keeps most recent in order", func(t *testing.T) {
		store := newFakeStore()
		c := NewConversationStore(store, 4)

		for i := 0; i < 9; i++ {
			if err := c.AppendTurn(ctx, "u1", "user", fmt.Sprintf("m%d", i)); err != nil {
				t.Fatalf("AppendTurn() error = %v", err)
			}
		}

		msgs := store.accounts["u1"].Messages
		if len(msgs) != 4 {
			t.Fatalf("len(messages) = %d, want 4", len(msgs))
		}
		for i, want := range []string{"m5", "m6", "m7", "m8"} {
			if msgs[i].Text != want {
				t.Errorf("messages[%d] = %q, want %q", i, msgs[i].Text, want)
			}
		}
	})
}

func TestAppendExchange(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewConversationStore(store, 10)

	if err := c.AppendExchange(ctx, "u1", "hello", "hi there"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	msgs := store.accounts["u1"].Messages
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Text != "hello" {
		t.Errorf("messages[0] = %+v, want user/hello", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Text != "hi there" {
		t.Errorf("messages[1] = %+v, want assistant/hi there", msgs[1])
	}
}

func TestRecentContext(t *testing.T) {
	ctx := context.Background()

	t.Run("formats last n oldest first", func(t *testing.T) {
		store := newFakeStore()
		c := NewConversationStore(store, 20)

		_ = c.AppendExchange(ctx, "u1", "first question", "first answer")
		_ = c.AppendExchange(ctx, "u1", "second question", "second answer")

		got, err := c.RecentContext(ctx, "u1", 3)
		if err != nil {
			t.Fatalf("RecentContext() error = %v", err)
		}
		want := "assistant: first answer\nuser: second question\nassistant: second answer"
		if got != want {
			t.Errorf("RecentContext() = %q, want %q", got, want)
		}
	})

	t.Run("empty for unknown user", func(t *testing.T) {
		c := NewConversationStore(newFakeStore(), 20)
		got, err := c.RecentContext(ctx, "nobody", 5)
		if err != nil {
			t.Fatalf("RecentContext() error = %v", err)
		}
		if got != "" {
			t.Errorf("RecentContext() = %q, want empty", got)
		}
	})
}

func TestClear(t *testing.T) {
	ctx := context.Background()

	t.Run("clears existing history", func(t *testing.T) {
		store := newFakeStore()
		c := NewConversationStore(store, 10)
		_ = c.AppendExchange(ctx, "u1", "hello", "hi")

		if err := c.Clear(ctx, "u1"); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if len(store.accounts["u1"].Messages) != 0 {
			t.Error("messages not cleared")
		}
	})

	t.Run("missing account reports not found", func(t *testing.T) {
		c := NewConversationStore(newFakeStore(), 10)
		if err := c.Clear(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Clear(unknown) = %v, want ErrNotFound", err)
		}
	})

	t.Run("empty history reports not found", func(t *testing.T) {
		store := newFakeStore()
		_, _ = store.CreateAccount(ctx, "u1")
		c := NewConversationStore(store, 10)
		if err := c.Clear(ctx, "u1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Clear(empty) = %v, want ErrNotFound", err)
		}
	})
}
