package telegram

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/logger"
)

// markCallbackProcessed dedupes callback deliveries; Telegram retries them
// when an answer is slow.
func (b *Bot) markCallbackProcessed(callbackID string) bool {
	b.callbackMu.Lock()
	defer b.callbackMu.Unlock()

	if _, seen := b.callbackSeen[callbackID]; seen {
		return false
	}
	b.callbackSeen[callbackID] = time.Now()

	// Drop stale entries so the map stays bounded.
	cutoff := time.Now().Add(-time.Minute)
	for id, at := range b.callbackSeen {
		if at.Before(cutoff) {
			delete(b.callbackSeen, id)
		}
	}
	return true
}

func (b *Bot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) error {
	if !b.markCallbackProcessed(callback.ID) {
		logger.Debug("Ignoring duplicate callback", map[string]interface{}{
			"callback_id": callback.ID,
		})
		return nil
	}

	chatID := callback.Message.Chat.ID
	data := callback.Data

	switch {
	case strings.HasPrefix(data, "model_"):
		b.handleModelCallback(callback, strings.TrimPrefix(data, "model_"))
	case strings.HasPrefix(data, "unavailable_"):
		b.answerCallback(callback.ID, consts.MsgModelUnavailable)
	case strings.HasPrefix(data, "lang_"):
		b.handleLanguageCallback(callback, strings.TrimPrefix(data, "lang_"))
	default:
		logger.Warn("Unknown callback data", map[string]interface{}{
			"data":    data,
			"chat_id": chatID,
		})
		b.answerCallback(callback.ID, "")
	}

	return nil
}

func (b *Bot) handleModelCallback(callback *tgbotapi.CallbackQuery, modelID string) {
	chatID := callback.Message.Chat.ID

	mc, err := b.router.SelectModel(chatKey(chatID), modelID)
	if err != nil {
		b.answerCallback(callback.ID, consts.MsgModelUnavailable)
		return
	}

	b.answerCallback(callback.ID, "Model set to "+mc.Name)
	edit := tgbotapi.NewEditMessageText(chatID, callback.Message.MessageID,
		"✅ Model set to "+mc.Name)
	if _, err := b.rateLimitedSend(edit); err != nil {
		logger.Debug("Failed to edit model selection message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}

func (b *Bot) handleLanguageCallback(callback *tgbotapi.CallbackQuery, code string) {
	chatID := callback.Message.Chat.ID

	name, ok := consts.Languages[code]
	if !ok {
		b.answerCallback(callback.ID, "Unknown language")
		return
	}

	b.setUserLang(chatID, code)
	b.answerCallback(callback.ID, "Language set")
	edit := tgbotapi.NewEditMessageText(chatID, callback.Message.MessageID,
		"✅ Replies will be in "+name)
	if _, err := b.rateLimitedSend(edit); err != nil {
		logger.Debug("Failed to edit language selection message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	answer := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(answer); err != nil {
		logger.Debug("Failed to answer callback", map[string]interface{}{
			"error":       err.Error(),
			"callback_id": callbackID,
		})
	}
}
