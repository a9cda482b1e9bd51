// Package telegram is the transport layer: it receives updates, fans them out
// to a worker pool, and maps pipeline outcomes to user-visible replies.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Aman-20/Telegram-bot/internal/access"
	"github.com/Aman-20/Telegram-bot/internal/chat"
	"github.com/Aman-20/Telegram-bot/internal/config"
	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/conversation"
	"github.com/Aman-20/Telegram-bot/internal/database"
	"github.com/Aman-20/Telegram-bot/internal/document"
	"github.com/Aman-20/Telegram-bot/internal/llm"
	"github.com/Aman-20/Telegram-bot/internal/logger"
	"github.com/Aman-20/Telegram-bot/internal/metrics"
	"github.com/Aman-20/Telegram-bot/internal/ratelimit"
	"github.com/Aman-20/Telegram-bot/internal/search"
	"github.com/Aman-20/Telegram-bot/internal/usage"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	config *config.Config
	db     *database.DB

	accessCtl *access.Controller
	limiter   *ratelimit.CooldownLimiter
	ledger    *usage.Ledger
	convs     *conversation.ConversationStore
	router    *llm.Router
	pipeline  *chat.Pipeline
	extractor *document.Extractor
	metrics   *metrics.Metrics

	// Outbound sends share one global limiter to stay under the Telegram
	// API ceiling.
	sendLimiter *rate.Limiter

	// Per-user reply language, process-local.
	langMu    sync.RWMutex
	userLangs map[int64]string

	// Recently seen callback IDs, for dropping duplicate deliveries.
	callbackMu   sync.Mutex
	callbackSeen map[string]time.Time

	workerPool *WorkerPool
}

func NewBot(cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	db, err := database.NewDB(cfg.PostgreDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.InfoMsg("Database initialized successfully")

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	accessCtl := access.NewController(db, strconv.FormatInt(cfg.AdminID, 10))
	limiter := ratelimit.NewCooldownLimiter(cfg.MessageCooldown, cfg.MediaCooldown, cfg.CommandCooldown)
	ledger := usage.NewLedger(db, cfg.Location())
	convs := conversation.NewConversationStore(db, cfg.DBMessageLimit)
	router := llm.NewRouter(cfg, ledger)

	var searcher chat.Searcher
	if cfg.HasSearchConfig() {
		searcher = search.NewClient(cfg.SerperAPIKey, cfg.SearchResults)
	} else {
		logger.InfoMsg("No search API key configured, /search disabled")
	}

	pipeline := chat.NewPipeline(accessCtl, limiter, db, ledger, convs, router, searcher, m, chat.Limits{
		DailyRequests:   cfg.DailyRequestLimit,
		DailyTokens:     cfg.DailyTokenLimit,
		MaxReplyTokens:  cfg.MaxReplyTokens,
		HistoryMessages: cfg.HistoryMessages,
		SearchPerDay:    cfg.SearchLimit,
		ImaginePerDay:   cfg.ImagineLimit,
		DocPerDay:       cfg.DocAnalysisLimit,
		ImagePerDay:     cfg.ImageAnalysisLimit,
	})

	return &Bot{
		api:          api,
		config:       cfg,
		db:           db,
		accessCtl:    accessCtl,
		limiter:      limiter,
		ledger:       ledger,
		convs:        convs,
		router:       router,
		pipeline:     pipeline,
		extractor:    document.NewExtractor(cfg.DocCharLimit),
		metrics:      m,
		sendLimiter:  rate.NewLimiter(rate.Limit(25), 25),
		userLangs:    make(map[int64]string),
		callbackSeen: make(map[string]time.Time),
	}, nil
}

func (b *Bot) Start() error {
	logger.Info("Bot authorized and starting", map[string]interface{}{
		"username": b.api.Self.UserName,
		"admin_id": b.config.AdminID,
	})

	b.workerPool = NewWorkerPool(b, DefaultWorkerPoolConfig())
	if err := b.workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.CallbackQuery != nil {
			if err := b.workerPool.SubmitCallback(update.CallbackQuery); err != nil {
				logger.Error("Failed to submit callback to worker pool", map[string]interface{}{
					"error":       err.Error(),
					"chat_id":     update.CallbackQuery.Message.Chat.ID,
					"callback_id": update.CallbackQuery.ID,
				})
			}
			continue
		}

		if update.Message == nil {
			continue
		}

		if err := b.workerPool.SubmitMessage(update.Message); err != nil {
			logger.Error("Failed to submit message to worker pool", map[string]interface{}{
				"error":   err.Error(),
				"chat_id": update.Message.Chat.ID,
			})
		}
	}

	return nil
}

// Stop shuts down the worker pool and closes the database.
func (b *Bot) Stop() error {
	logger.InfoMsg("Stopping bot...")

	if b.workerPool != nil {
		if err := b.workerPool.Stop(); err != nil {
			return err
		}
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			logger.Error("Error closing database", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	logger.InfoMsg("Bot stopped successfully")
	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) error {
	if message.Document != nil {
		return b.handleDocumentMessage(message)
	}

	if len(message.Photo) > 0 {
		return b.handlePhotoMessage(message)
	}

	if message.Text == "" {
		return nil
	}

	if message.IsCommand() {
		return b.handleCommand(message)
	}

	return b.handleTextMessage(message)
}

func (b *Bot) userLang(chatID int64) string {
	b.langMu.RLock()
	defer b.langMu.RUnlock()

	if lang, ok := b.userLangs[chatID]; ok {
		return lang
	}
	return consts.DefaultLanguage
}

func (b *Bot) setUserLang(chatID int64, lang string) {
	b.langMu.Lock()
	b.userLangs[chatID] = lang
	b.langMu.Unlock()
}

// chatKey is the string identity the domain layers use for a Telegram chat.
func chatKey(chatID int64) string {
	return fmt.Sprintf("%d", chatID)
}

// isLink matches messages that are bare links, which the bot refuses to relay.
func isLink(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
