package main

import (
	"log"

	"github.com/Aman-20/Telegram-bot/internal/config"
	"github.com/Aman-20/Telegram-bot/internal/logger"
	"github.com/Aman-20/Telegram-bot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("Bot is starting", map[string]interface{}{
		"log_level":  cfg.LogLevel,
		"has_gemini": cfg.HasGeminiConfig(),
		"has_openai": cfg.HasOpenAIConfig(),
		"has_claude": cfg.HasClaudeConfig(),
		"has_search": cfg.HasSearchConfig(),
	})

	bot, err := telegram.NewBot(cfg)
	if err != nil {
		logger.Error("Failed to create Telegram bot", map[string]interface{}{
			"error": err.Error(),
		})
		log.Fatalf("Failed to create Telegram bot: %v", err)
	}

	logger.InfoMsg("🤖 Ready to chat!")

	defer bot.Stop()
	if err := bot.Start(); err != nil {
		logger.Error("Bot error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
