package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the bot reads from the environment: credentials,
// per-day budgets, cooldown windows and the model catalog inputs.
type Config struct {
	TelegramBotToken string
	AdminID          int64
	ForceJoinChannel string
	PostgreDSN       string
	LogLevel         string
	Timezone         string

	// Daily budgets
	DailyRequestLimit int
	DailyTokenLimit   int
	MaxReplyTokens    int

	// Conversation bounds
	HistoryMessages int
	DBMessageLimit  int

	// Cooldown windows
	MessageCooldown time.Duration
	MediaCooldown   time.Duration
	CommandCooldown time.Duration

	// Per-feature daily limits
	SearchLimit        int
	ImagineLimit       int
	DocAnalysisLimit   int
	ImageAnalysisLimit int
	ProModelLimit      int

	ApprovalExpiryHours float64

	DocCharLimit  int
	SearchResults int

	// Provider credentials and model names
	GeminiAPIKey string
	GeminiModel1 string
	GeminiModel2 string
	GeminiModel3 string
	GeminiModel4 string
	GeminiModel5 string

	OpenAIAPIKey   string
	OpenAIEndpoint string
	OpenAIModel    string

	ClaudeAPIKey string
	ClaudeModel  string

	SerperAPIKey string
}

func Load() (*Config, error) {
	// A missing .env file is fine when the environment is set by the deployment.
	_ = godotenv.Load()

	adminID, err := strconv.ParseInt(os.Getenv("ADMIN_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid or missing ADMIN_ID: %w", err)
	}

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminID:          adminID,
		ForceJoinChannel: os.Getenv("FORCE_JOIN_CHANNEL"),
		PostgreDSN:       os.Getenv("POSTGRE_DSN"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		Timezone:         os.Getenv("TIMEZONE"),

		DailyRequestLimit: getEnvInt("DAILY_REQUEST_LIMIT", 50),
		DailyTokenLimit:   getEnvInt("DAILY_TOKEN_LIMIT", 20000),
		MaxReplyTokens:    getEnvInt("MAX_REPLY_TOKENS", 1000),

		HistoryMessages: getEnvInt("HISTORY_MESSAGES", 10),
		DBMessageLimit:  getEnvInt("DB_MSG_LIMIT", 40),

		MessageCooldown: getEnvSeconds("RATE_LIMIT_MS", 5),
		MediaCooldown:   getEnvSeconds("LIMIT_MEDIA_COOLDOWN", 30),
		CommandCooldown: getEnvSeconds("COMMAND_LIMIT_MS", 15),

		SearchLimit:        getEnvInt("SEARCH_LIMIT", 5),
		ImagineLimit:       getEnvInt("IMAGINE_LIMIT", 5),
		DocAnalysisLimit:   getEnvInt("LIMIT_DOC_ANALYSIS", 3),
		ImageAnalysisLimit: getEnvInt("LIMIT_IMG_ANALYSIS", 3),
		ProModelLimit:      getEnvInt("LIMIT_PRO_MODEL", 5),

		ApprovalExpiryHours: getEnvFloat("APPROVAL_EXPIRY_HOURS", 24),

		DocCharLimit:  getEnvInt("DOC_CHAR_LIMIT", 12000),
		SearchResults: getEnvInt("SEARCH_RESULTS", 5),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel1: os.Getenv("GEMINI_MODEL_1"),
		GeminiModel2: os.Getenv("GEMINI_MODEL_2"),
		GeminiModel3: os.Getenv("GEMINI_MODEL_3"),
		GeminiModel4: os.Getenv("GEMINI_MODEL_4"),
		GeminiModel5: os.Getenv("GEMINI_MODEL_5"),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint: getEnvOrDefault("OPENAI_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL_1"),

		ClaudeAPIKey: os.Getenv("CLAUDE_API_KEY"),
		ClaudeModel:  os.Getenv("CLAUDE_MODEL_1"),

		SerperAPIKey: os.Getenv("SERPER_API_KEY"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"TELEGRAM_BOT_TOKEN": c.TelegramBotToken,
		"POSTGRE_DSN":        c.PostgreDSN,
	}

	for key, value := range required {
		if value == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}

	return nil
}

func (c *Config) HasGeminiConfig() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) HasOpenAIConfig() bool {
	return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
}

func (c *Config) HasClaudeConfig() bool {
	return c.ClaudeAPIKey != "" && c.ClaudeModel != ""
}

func (c *Config) HasSearchConfig() bool {
	return c.SerperAPIKey != ""
}

func (c *Config) HasForceJoin() bool {
	return c.ForceJoinChannel != ""
}

// Location resolves the configured timezone for calendar-day rollovers.
// Falls back to the process local zone when TIMEZONE is unset or invalid.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvSeconds reads an integer number of seconds and returns it as a duration.
func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
