// Package access decides whether a chat identity may interact with the bot:
// public-mode override, admin bypass, and time-bounded approval grants.
package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Aman-20/Telegram-bot/internal/database"
	"github.com/Aman-20/Telegram-bot/internal/logger"
)

// DeniedReason explains why authorization failed.
type DeniedReason string

const (
	ReasonNotApproved DeniedReason = "not_approved"
	ReasonExpired     DeniedReason = "expired"
)

// DeniedError is returned by Authorize when the user may not interact.
type DeniedError struct {
	Reason DeniedReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

// ErrUnauthorized is returned for operations the caller may not perform,
// such as revoking the admin's own access.
var ErrUnauthorized = errors.New("unauthorized")

// Store is the slice of the persistent store the controller needs.
type Store interface {
	GetAccount(ctx context.Context, chatID string) (*database.Account, error)
	SetApprovedUntil(ctx context.Context, chatID string, until time.Time) error
	ClearApproval(ctx context.Context, chatID string) error
}

// Controller resolves authorization for inbound messages.
type Controller struct {
	store   Store
	adminID string

	mu         sync.RWMutex
	publicMode bool

	now func() time.Time
}

func NewController(store Store, adminID string) *Controller {
	return &Controller{
		store:   store,
		adminID: adminID,
		now:     time.Now,
	}
}

// SetClock overrides the controller's clock. Tests only.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// PublicMode reports whether the bot currently admits everyone.
func (c *Controller) PublicMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.publicMode
}

// SetPublicMode toggles the public-mode override.
func (c *Controller) SetPublicMode(public bool) {
	c.mu.Lock()
	c.publicMode = public
	c.mu.Unlock()

	logger.Info("Public mode changed", map[string]interface{}{
		"public": public,
	})
}

// IsAdmin reports whether userID is the configured admin identity.
func (c *Controller) IsAdmin(userID string) bool {
	return userID == c.adminID
}

// Authorize returns nil when the user may interact, or a *DeniedError.
// Public mode and the admin identity bypass the store entirely. Denial does
// not create an account; every check re-evaluates the stored expiry.
func (c *Controller) Authorize(ctx context.Context, userID string) error {
	if c.PublicMode() || c.IsAdmin(userID) {
		return nil
	}

	acct, err := c.store.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}

	if acct == nil || acct.ApprovedUntil == nil {
		return &DeniedError{Reason: ReasonNotApproved}
	}

	if c.now().After(*acct.ApprovedUntil) {
		return &DeniedError{Reason: ReasonExpired}
	}

	return nil
}

// Approve grants access until now+duration, upserting the account if absent.
// Re-approving simply overwrites the expiry.
func (c *Controller) Approve(ctx context.Context, userID string, duration time.Duration) (time.Time, error) {
	until := c.now().Add(duration)

	if err := c.store.SetApprovedUntil(ctx, userID, until); err != nil {
		return time.Time{}, fmt.Errorf("failed to approve user: %w", err)
	}

	logger.Info("User approved", map[string]interface{}{
		"user_id": userID,
		"until":   until.Format(time.RFC3339),
	})

	return until, nil
}

// Revoke clears the approval grant. The admin identity cannot be revoked
// through this path.
func (c *Controller) Revoke(ctx context.Context, userID string) error {
	if c.IsAdmin(userID) {
		return ErrUnauthorized
	}

	if err := c.store.ClearApproval(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke user: %w", err)
	}

	logger.Info("User approval revoked", map[string]interface{}{
		"user_id": userID,
	})

	return nil
}
