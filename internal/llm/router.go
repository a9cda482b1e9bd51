// Package llm routes chat requests to the configured AI providers. The
// provider catalog is built once from the environment; dispatch is a table
// lookup by provider kind, so adding a provider means registering an adapter.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Aman-20/Telegram-bot/internal/config"
	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/logger"
	"github.com/Aman-20/Telegram-bot/internal/usage"
)

// Provider identifies an upstream AI vendor.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderClaude Provider = "claude"
)

// DefaultModelID is selected for users who never picked a model.
const DefaultModelID = "gemini"

// ModelConfig is one immutable catalog entry.
type ModelConfig struct {
	ID         string   // logical id used in selection callbacks
	Name       string   // display name
	Provider   Provider // which adapter serves it
	Model      string   // upstream model name
	Available  bool     // credentials are configured
	ProLimited bool     // carries its own daily cap on top of the token budget
}

// GenerateRequest is the uniform contract every provider adapter accepts.
type GenerateRequest struct {
	Model     string
	Prompt    string
	MaxTokens int
}

// Generator is the capability each provider adapter implements.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// UnavailableError reports a model whose credentials are not configured.
type UnavailableError struct {
	ModelID string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("model %s is not available", e.ModelID)
}

// ProLimitError reports an exhausted premium-tier daily cap.
type ProLimitError struct {
	Limit int
}

func (e *ProLimitError) Error() string {
	return fmt.Sprintf("pro model daily limit reached (%d)", e.Limit)
}

// ProviderError wraps an upstream failure. Never retried here; the caller
// decides user-visible messaging.
type ProviderError struct {
	ModelID string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error for model %s: %v", e.ModelID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProGate is the slice of the usage ledger the router consults for
// premium-tier sub-limits.
type ProGate interface {
	TryConsume(userID string, feature usage.Feature, limit int) bool
}

// DispatchRequest carries one chat turn through the router.
type DispatchRequest struct {
	UserID    string
	History   string // preformatted "role: text" lines, oldest first
	UserText  string
	Language  string // language code, defaults to English
	MaxTokens int
}

// Router owns the catalog, per-user model selection, and the adapter table.
type Router struct {
	catalog    []ModelConfig
	byID       map[string]ModelConfig
	generators map[Provider]Generator

	proGate  ProGate
	proLimit int

	mu       sync.RWMutex
	selected map[string]string // userID -> model id
}

// NewRouter builds the catalog from configuration and registers an adapter
// for every provider with credentials.
func NewRouter(cfg *config.Config, proGate ProGate) *Router {
	r := &Router{
		byID:       make(map[string]ModelConfig),
		generators: make(map[Provider]Generator),
		proGate:    proGate,
		proLimit:   cfg.ProModelLimit,
		selected:   make(map[string]string),
	}

	entries := []ModelConfig{
		{ID: "gemini", Name: cfg.GeminiModel1, Provider: ProviderGemini, Model: cfg.GeminiModel1, Available: cfg.HasGeminiConfig()},
		{ID: "gemini_flash1", Name: cfg.GeminiModel3, Provider: ProviderGemini, Model: cfg.GeminiModel3, Available: cfg.HasGeminiConfig()},
		{ID: "gemini_flash2", Name: cfg.GeminiModel2, Provider: ProviderGemini, Model: cfg.GeminiModel2, Available: cfg.HasGeminiConfig()},
		{ID: "gemini_flash3", Name: cfg.GeminiModel5, Provider: ProviderGemini, Model: cfg.GeminiModel5, Available: cfg.HasGeminiConfig()},
		{ID: "gemini_pro", Name: cfg.GeminiModel4, Provider: ProviderGemini, Model: cfg.GeminiModel4, Available: cfg.HasGeminiConfig(), ProLimited: true},
		{ID: "openai", Name: cfg.OpenAIModel, Provider: ProviderOpenAI, Model: cfg.OpenAIModel, Available: cfg.HasOpenAIConfig()},
		{ID: "claude", Name: cfg.ClaudeModel, Provider: ProviderClaude, Model: cfg.ClaudeModel, Available: cfg.HasClaudeConfig()},
	}
	for _, e := range entries {
		if e.Name == "" {
			e.Name = e.ID
		}
		r.catalog = append(r.catalog, e)
		r.byID[e.ID] = e
	}

	if cfg.HasGeminiConfig() {
		gemini, err := NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			logger.Warn("Failed to initialize Gemini client", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			r.generators[ProviderGemini] = gemini
		}
	}
	if cfg.HasOpenAIConfig() {
		r.generators[ProviderOpenAI] = NewOpenAIClient(cfg.OpenAIEndpoint, cfg.OpenAIAPIKey)
	}
	if cfg.HasClaudeConfig() {
		r.generators[ProviderClaude] = NewClaudeClient(cfg.ClaudeAPIKey)
	}

	return r
}

// Register installs or replaces the adapter for a provider kind.
func (r *Router) Register(provider Provider, gen Generator) {
	r.generators[provider] = gen
}

// Catalog returns the catalog in stable display order.
func (r *Router) Catalog() []ModelConfig {
	return r.catalog
}

// SelectModel stores the user's model choice.
func (r *Router) SelectModel(userID, modelID string) (ModelConfig, error) {
	mc, ok := r.byID[modelID]
	if !ok {
		return ModelConfig{}, fmt.Errorf("unknown model %q", modelID)
	}

	r.mu.Lock()
	r.selected[userID] = modelID
	r.mu.Unlock()

	return mc, nil
}

// SelectedModel returns the user's current model, falling back to the default.
func (r *Router) SelectedModel(userID string) ModelConfig {
	r.mu.RLock()
	id, ok := r.selected[userID]
	r.mu.RUnlock()

	if !ok {
		id = DefaultModelID
	}
	mc, found := r.byID[id]
	if !found {
		mc = r.byID[DefaultModelID]
	}
	return mc
}

// BuildPrompt assembles the provider prompt: language instruction first, then
// history oldest to newest, then the current turn.
func BuildPrompt(langCode, history, userText string) string {
	name, ok := consts.Languages[langCode]
	if !ok {
		langCode = consts.DefaultLanguage
		name = consts.Languages[langCode]
	}
	return fmt.Sprintf("Answer in %s (%s)\n\nConversation so far:\n%s\n\nUser: %s",
		name, langCode, history, userText)
}

// Dispatch sends one chat turn to the user's selected model. Fails fast when
// the model has no credentials, and enforces the premium-tier daily cap
// before any network call.
func (r *Router) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	mc := r.SelectedModel(req.UserID)

	if !mc.Available {
		return "", &UnavailableError{ModelID: mc.ID}
	}

	gen, ok := r.generators[mc.Provider]
	if !ok {
		return "", &UnavailableError{ModelID: mc.ID}
	}

	if mc.ProLimited && r.proGate != nil {
		if !r.proGate.TryConsume(req.UserID, usage.FeaturePro, r.proLimit) {
			return "", &ProLimitError{Limit: r.proLimit}
		}
	}

	prompt := BuildPrompt(req.Language, req.History, req.UserText)

	reply, err := gen.Generate(ctx, GenerateRequest{
		Model:     mc.Model,
		Prompt:    prompt,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", &ProviderError{ModelID: mc.ID, Err: err}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &ProviderError{ModelID: mc.ID, Err: fmt.Errorf("empty response")}
	}

	return reply, nil
}

// SummarizeDocument runs extracted document text through the fast Gemini
// model, mirroring the document-analysis flow.
func (r *Router) SummarizeDocument(ctx context.Context, text string, maxTokens int) (string, error) {
	mc, ok := r.byID["gemini_flash3"]
	if !ok || !mc.Available {
		return "", &UnavailableError{ModelID: "gemini_flash3"}
	}
	gen := r.generators[ProviderGemini]
	if gen == nil {
		return "", &UnavailableError{ModelID: mc.ID}
	}

	reply, err := gen.Generate(ctx, GenerateRequest{
		Model:     mc.Model,
		Prompt:    "Summarize this document:\n\n" + text,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", &ProviderError{ModelID: mc.ID, Err: err}
	}
	return strings.TrimSpace(reply), nil
}

// DescribeImage analyzes a photo with Gemini's multimodal capability.
func (r *Router) DescribeImage(ctx context.Context, imageData []byte, maxTokens int) (string, error) {
	mc, ok := r.byID["gemini_flash3"]
	if !ok || !mc.Available {
		return "", &UnavailableError{ModelID: "gemini_flash3"}
	}
	gemini, ok := r.generators[ProviderGemini].(*GeminiClient)
	if !ok {
		return "", &UnavailableError{ModelID: mc.ID}
	}

	reply, err := gemini.DescribeImage(ctx, mc.Model, imageData, maxTokens)
	if err != nil {
		return "", &ProviderError{ModelID: mc.ID, Err: err}
	}
	return strings.TrimSpace(reply), nil
}
