// Package conversation maintains the bounded per-user message history that
// backs the provider prompt's context window.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/database"
)

// ErrNotFound reports a clear on a user with no stored history. Handled as a
// user-visible notice, never as a failure.
var ErrNotFound = errors.New("no chat history found")

// Store is the slice of the persistent store the conversation layer needs.
type Store interface {
	GetAccount(ctx context.Context, chatID string) (*database.Account, error)
	CreateAccount(ctx context.Context, chatID string) (*database.Account, error)
	SaveMessages(ctx context.Context, chatID string, messages []database.Message) error
}

type ConversationStore struct {
	store Store
	limit int // persisted cap (DB_MSG_LIMIT); oldest entries evicted beyond it

	now func() time.Time
}

func NewConversationStore(store Store, limit int) *ConversationStore {
	return &ConversationStore{
		store: store,
		limit: limit,
		now:   time.Now,
	}
}

// SetClock overrides the store's clock. Tests only.
func (c *ConversationStore) SetClock(now func() time.Time) {
	c.now = now
}

// AppendTurn records one turn. Role must be exactly "user" or "assistant".
func (c *ConversationStore) AppendTurn(ctx context.Context, userID, role, text string) error {
	if role != consts.RoleUser && role != consts.RoleAssistant {
		return fmt.Errorf("invalid role %q", role)
	}

	acct, err := c.store.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if acct == nil {
		acct, err = c.store.CreateAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
	}

	acct.AppendMessage(role, text, c.now(), c.limit)

	if err := c.store.SaveMessages(ctx, userID, acct.Messages); err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	return nil
}

// AppendExchange records a user turn and the assistant reply in one save.
func (c *ConversationStore) AppendExchange(ctx context.Context, userID, userText, assistantText string) error {
	acct, err := c.store.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if acct == nil {
		acct, err = c.store.CreateAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
	}

	now := c.now()
	acct.AppendMessage(consts.RoleUser, userText, now, c.limit)
	acct.AppendMessage(consts.RoleAssistant, assistantText, now, c.limit)

	if err := c.store.SaveMessages(ctx, userID, acct.Messages); err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	return nil
}

// RecentContext formats the last n turns, oldest first, as "role: text"
// lines for the provider prompt. Returns "" when there is no history.
func (c *ConversationStore) RecentContext(ctx context.Context, userID string, n int) (string, error) {
	acct, err := c.store.GetAccount(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}
	if acct == nil {
		return "", nil
	}

	recent := acct.RecentMessages(n)
	if len(recent) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(recent))
	for _, m := range recent {
		lines = append(lines, m.Role+": "+m.Text)
	}
	return strings.Join(lines, "\n"), nil
}

// Clear empties the user's history. Reports ErrNotFound when there is none.
func (c *ConversationStore) Clear(ctx context.Context, userID string) error {
	acct, err := c.store.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if acct == nil || len(acct.Messages) == 0 {
		return ErrNotFound
	}

	if err := c.store.SaveMessages(ctx, userID, nil); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}
