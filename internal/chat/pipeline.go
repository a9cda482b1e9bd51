// Package chat runs an inbound message through the full gate sequence:
// access, cooldowns, daily budgets, conversation context, provider dispatch,
// and the post-response commit. Nothing durable changes for a rejected turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Aman-20/Telegram-bot/internal/access"
	"github.com/Aman-20/Telegram-bot/internal/database"
	"github.com/Aman-20/Telegram-bot/internal/llm"
	"github.com/Aman-20/Telegram-bot/internal/logger"
	"github.com/Aman-20/Telegram-bot/internal/metrics"
	"github.com/Aman-20/Telegram-bot/internal/ratelimit"
	"github.com/Aman-20/Telegram-bot/internal/usage"
)

const imagineEndpoint = "https://image.pollinations.ai/prompt/"

// Authorizer is the access decision the pipeline consults first.
type Authorizer interface {
	Authorize(ctx context.Context, userID string) error
}

// Limiter applies per-user cooldown windows.
type Limiter interface {
	Check(domain ratelimit.Domain, userID string) error
}

// Accounts is the slice of the persistent store the pipeline needs directly.
type Accounts interface {
	GetAccount(ctx context.Context, chatID string) (*database.Account, error)
	CreateAccount(ctx context.Context, chatID string) (*database.Account, error)
}

// Ledger tracks daily budgets, durable and ephemeral.
type Ledger interface {
	Roll(ctx context.Context, acct *database.Account) error
	CheckRequestBudget(acct *database.Account, limit int) bool
	TryReserveTokens(acct *database.Account, amount, limit int) bool
	WouldExceed(acct *database.Account, amount, limit int) bool
	Commit(ctx context.Context, acct *database.Account, tokens int) error
	TryConsume(userID string, feature usage.Feature, limit int) bool
}

// History is the conversation context the prompt is built from.
type History interface {
	RecentContext(ctx context.Context, userID string, n int) (string, error)
	AppendExchange(ctx context.Context, userID, userText, assistantText string) error
}

// Dispatcher sends a prepared turn to the user's selected model.
type Dispatcher interface {
	Dispatch(ctx context.Context, req llm.DispatchRequest) (string, error)
	SelectedModel(userID string) llm.ModelConfig
	SummarizeDocument(ctx context.Context, text string, maxTokens int) (string, error)
	DescribeImage(ctx context.Context, imageData []byte, maxTokens int) (string, error)
}

// Searcher runs one web search query.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Limits carries every daily allowance the pipeline enforces.
type Limits struct {
	DailyRequests   int
	DailyTokens     int
	MaxReplyTokens  int
	HistoryMessages int
	SearchPerDay    int
	ImaginePerDay   int
	DocPerDay       int
	ImagePerDay     int
}

// Inbound is one user turn entering the pipeline.
type Inbound struct {
	UserID   string
	Text     string
	Language string // language code for the reply; empty means English
}

// Reply is a successful turn's outcome, including the remaining budget the
// footer displays.
type Reply struct {
	Text         string
	ModelName    string
	RequestsLeft int64
	TokensLeft   int64
}

// Pipeline owns the gate sequence. Construct with NewPipeline; all fields are
// required except searcher, which may be nil when search is not configured.
type Pipeline struct {
	auth     Authorizer
	limiter  Limiter
	accounts Accounts
	ledger   Ledger
	history  History
	router   Dispatcher
	searcher Searcher
	metrics  *metrics.Metrics
	limits   Limits
}

func NewPipeline(auth Authorizer, limiter Limiter, accounts Accounts, ledger Ledger,
	history History, router Dispatcher, searcher Searcher, m *metrics.Metrics, limits Limits) *Pipeline {
	return &Pipeline{
		auth:     auth,
		limiter:  limiter,
		accounts: accounts,
		ledger:   ledger,
		history:  history,
		router:   router,
		searcher: searcher,
		metrics:  m,
		limits:   limits,
	}
}

// Process runs one text turn through every gate. Rejections surface as typed
// errors the transport layer maps to user-visible messages; the conversation
// and the durable counters change only after a reply has passed every check.
func (p *Pipeline) Process(ctx context.Context, in Inbound) (*Reply, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	acct, err := p.gate(ctx, in.UserID, ratelimit.DomainMessage)
	if err != nil {
		return nil, err
	}

	if !p.ledger.CheckRequestBudget(acct, p.limits.DailyRequests) {
		p.observe("quota")
		p.metrics.QuotaRejections.WithLabelValues("request").Inc()
		return nil, &QuotaExceededError{Feature: "request", Limit: p.limits.DailyRequests}
	}

	inputTokens := usage.EstimateTokens(text)
	if !p.ledger.TryReserveTokens(acct, inputTokens, p.limits.DailyTokens) {
		p.observe("quota")
		p.metrics.QuotaRejections.WithLabelValues("token").Inc()
		return nil, ErrTokenLimitExceeded
	}

	history, err := p.history.RecentContext(ctx, in.UserID, p.limits.HistoryMessages)
	if err != nil {
		p.observe("error")
		return nil, err
	}

	model := p.router.SelectedModel(in.UserID)
	started := time.Now()
	replyText, err := p.router.Dispatch(ctx, llm.DispatchRequest{
		UserID:    in.UserID,
		History:   history,
		UserText:  text,
		Language:  in.Language,
		MaxTokens: p.limits.MaxReplyTokens,
	})
	p.metrics.ProviderLatency.WithLabelValues(model.Name).Observe(time.Since(started).Seconds())
	if err != nil {
		p.metrics.ProviderRequests.WithLabelValues(model.Name, "error").Inc()
		p.observe("error")
		return nil, err
	}
	p.metrics.ProviderRequests.WithLabelValues(model.Name, "ok").Inc()

	spent := inputTokens + usage.EstimateTokens(replyText)
	if p.ledger.WouldExceed(acct, spent, p.limits.DailyTokens) {
		// The reply is discarded, never shown, never stored.
		p.observe("quota")
		p.metrics.QuotaRejections.WithLabelValues("token").Inc()
		return nil, ErrTokenLimitExceeded
	}

	if err := p.history.AppendExchange(ctx, in.UserID, text, replyText); err != nil {
		p.observe("error")
		return nil, err
	}
	if err := p.ledger.Commit(ctx, acct, spent); err != nil {
		p.observe("error")
		return nil, err
	}

	p.observe("ok")
	return &Reply{
		Text:         replyText,
		ModelName:    model.Name,
		RequestsLeft: remaining(int64(p.limits.DailyRequests), acct.RequestsToday),
		TokensLeft:   remaining(int64(p.limits.DailyTokens), acct.TokensUsedToday),
	}, nil
}

// Search runs a gated web search. Consumes one search credit only when the
// user passes the access check.
func (p *Pipeline) Search(ctx context.Context, userID, query string) (string, error) {
	if p.searcher == nil {
		return "", fmt.Errorf("search is not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyMessage
	}

	if _, err := p.admit(ctx, userID); err != nil {
		return "", err
	}

	if !p.ledger.TryConsume(userID, usage.FeatureSearch, p.limits.SearchPerDay) {
		p.metrics.QuotaRejections.WithLabelValues(string(usage.FeatureSearch)).Inc()
		return "", &QuotaExceededError{Feature: string(usage.FeatureSearch), Limit: p.limits.SearchPerDay}
	}

	return p.searcher.Search(ctx, query)
}

// ImagineURL returns the image generation URL for a prompt after the gates
// pass. Generation itself happens on the image host; the bot only hands out
// the link.
func (p *Pipeline) ImagineURL(ctx context.Context, userID, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyMessage
	}

	if _, err := p.admit(ctx, userID); err != nil {
		return "", err
	}

	if !p.ledger.TryConsume(userID, usage.FeatureImagine, p.limits.ImaginePerDay) {
		p.metrics.QuotaRejections.WithLabelValues(string(usage.FeatureImagine)).Inc()
		return "", &QuotaExceededError{Feature: string(usage.FeatureImagine), Limit: p.limits.ImaginePerDay}
	}

	return imagineEndpoint + url.PathEscape(prompt), nil
}

// AnalyzeDocument summarizes extracted document text through the fast model.
func (p *Pipeline) AnalyzeDocument(ctx context.Context, userID, text string) (string, error) {
	if _, err := p.gate(ctx, userID, ratelimit.DomainMedia); err != nil {
		return "", err
	}

	if !p.ledger.TryConsume(userID, usage.FeatureDoc, p.limits.DocPerDay) {
		p.metrics.QuotaRejections.WithLabelValues(string(usage.FeatureDoc)).Inc()
		return "", &QuotaExceededError{Feature: string(usage.FeatureDoc), Limit: p.limits.DocPerDay}
	}

	return p.router.SummarizeDocument(ctx, text, p.limits.MaxReplyTokens)
}

// AnalyzeImage describes an uploaded photo through the fast model.
func (p *Pipeline) AnalyzeImage(ctx context.Context, userID string, imageData []byte) (string, error) {
	if _, err := p.gate(ctx, userID, ratelimit.DomainMedia); err != nil {
		return "", err
	}

	if !p.ledger.TryConsume(userID, usage.FeatureImage, p.limits.ImagePerDay) {
		p.metrics.QuotaRejections.WithLabelValues(string(usage.FeatureImage)).Inc()
		return "", &QuotaExceededError{Feature: string(usage.FeatureImage), Limit: p.limits.ImagePerDay}
	}

	return p.router.DescribeImage(ctx, imageData, p.limits.MaxReplyTokens)
}

// Status reports the user's remaining daily budget for the /status command.
func (p *Pipeline) Status(ctx context.Context, userID string) (requestsLeft, tokensLeft int64, err error) {
	acct, err := p.account(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if err := p.ledger.Roll(ctx, acct); err != nil {
		return 0, 0, err
	}
	return remaining(int64(p.limits.DailyRequests), acct.RequestsToday),
		remaining(int64(p.limits.DailyTokens), acct.TokensUsedToday), nil
}

// gate runs the shared front half of the message and media entry points:
// access, cooldown, account load, lazy daily rollover.
func (p *Pipeline) gate(ctx context.Context, userID string, domain ratelimit.Domain) (*database.Account, error) {
	if err := p.authorize(ctx, userID); err != nil {
		return nil, err
	}

	if err := p.limiter.Check(domain, userID); err != nil {
		var limited *ratelimit.LimitedError
		if errors.As(err, &limited) {
			p.observe("limited")
			p.metrics.RateLimited.WithLabelValues(string(limited.Domain)).Inc()
		}
		return nil, err
	}

	return p.loadAndRoll(ctx, userID)
}

// admit is gate without a cooldown check. The command entry points use it:
// command cooldowns are keyed by (user, command) and enforced by the
// transport layer before the pipeline is reached.
func (p *Pipeline) admit(ctx context.Context, userID string) (*database.Account, error) {
	if err := p.authorize(ctx, userID); err != nil {
		return nil, err
	}
	return p.loadAndRoll(ctx, userID)
}

func (p *Pipeline) authorize(ctx context.Context, userID string) error {
	if err := p.auth.Authorize(ctx, userID); err != nil {
		var denied *access.DeniedError
		if errors.As(err, &denied) {
			p.observe("denied")
			p.metrics.AccessDenials.WithLabelValues(string(denied.Reason)).Inc()
		} else {
			p.observe("error")
		}
		return err
	}
	return nil
}

func (p *Pipeline) loadAndRoll(ctx context.Context, userID string) (*database.Account, error) {
	acct, err := p.account(ctx, userID)
	if err != nil {
		p.observe("error")
		return nil, err
	}

	if err := p.ledger.Roll(ctx, acct); err != nil {
		p.observe("error")
		return nil, err
	}
	return acct, nil
}

func (p *Pipeline) account(ctx context.Context, userID string) (*database.Account, error) {
	acct, err := p.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if acct == nil {
		acct, err = p.accounts.CreateAccount(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		logger.Debug("Created account on first contact", map[string]interface{}{
			"user_id": userID,
		})
	}
	return acct, nil
}

func (p *Pipeline) observe(status string) {
	p.metrics.MessagesProcessed.WithLabelValues(status).Inc()
}

func remaining(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}
