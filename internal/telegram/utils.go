package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Aman-20/Telegram-bot/internal/access"
	"github.com/Aman-20/Telegram-bot/internal/chat"
	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/llm"
	"github.com/Aman-20/Telegram-bot/internal/logger"
	"github.com/Aman-20/Telegram-bot/internal/ratelimit"
)

// rateLimitedSend pushes any outbound API call through the global limiter.
func (b *Bot) rateLimitedSend(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.sendLimiter.Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("send limiter error: %w", err)
	}
	return b.api.Send(msg)
}

func (b *Bot) sendResponse(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.rateLimitedSend(msg); err != nil {
		logger.Error("Failed to send message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}

// sendLongMessage splits text into chunks under the Telegram size cap,
// preferring newline boundaries. Each chunk goes out as Markdown, retried as
// plain text when the provider emitted markup Telegram rejects.
func (b *Bot) sendLongMessage(chatID int64, text string) {
	for _, chunk := range splitMessage(text, consts.MaxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.rateLimitedSend(msg); err != nil {
			logger.Debug("Markdown send failed, retrying as plain text", map[string]interface{}{
				"error":   err.Error(),
				"chat_id": chatID,
			})
			plain := tgbotapi.NewMessage(chatID, chunk)
			if _, err := b.rateLimitedSend(plain); err != nil {
				logger.Error("Failed to send message chunk", map[string]interface{}{
					"error":   err.Error(),
					"chat_id": chatID,
				})
				return
			}
		}
	}
}

// splitMessage chunks text to at most limit runes, breaking on the last
// newline inside the window when one exists.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}

		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i
				break
			}
		}

		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
		if len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	return chunks
}

func (b *Bot) sendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(action); err != nil {
		logger.Debug("Failed to send typing action", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}

// isChannelMember checks the force-join gate. Fails closed: an API error
// counts as not a member.
func (b *Bot) isChannelMember(userID int64) bool {
	if !b.config.HasForceJoin() {
		return true
	}

	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: b.config.ForceJoinChannel,
			UserID:             userID,
		},
	})
	if err != nil {
		logger.Warn("Membership check failed, treating as non-member", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
			"channel": b.config.ForceJoinChannel,
		})
		return false
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return true
	}
	return false
}

// sendJoinPrompt tells the user to join the required channel, with a button
// linking straight to it.
func (b *Bot) sendJoinPrompt(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, consts.MsgJoinChannel)
	channel := strings.TrimPrefix(b.config.ForceJoinChannel, "@")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📢 Join channel", "https://t.me/"+channel),
		),
	)
	if _, err := b.rateLimitedSend(msg); err != nil {
		logger.Error("Failed to send join prompt", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}

// errorMessage maps a pipeline error to the text the user sees. Unknown
// errors collapse to a generic notice so internals never leak into chat.
func (b *Bot) errorMessage(err error) string {
	var denied *access.DeniedError
	if errors.As(err, &denied) {
		if denied.Reason == access.ReasonExpired {
			return consts.MsgAccessExpired
		}
		return consts.MsgNoAccess
	}

	var limited *ratelimit.LimitedError
	if errors.As(err, &limited) {
		return fmt.Sprintf("⏳ Please wait %d seconds before trying again.", limited.RetryAfter)
	}

	var quota *chat.QuotaExceededError
	if errors.As(err, &quota) {
		switch quota.Feature {
		case "request":
			return fmt.Sprintf("🚫 You have reached your daily limit of %d requests. Try again tomorrow.", quota.Limit)
		default:
			return fmt.Sprintf("🚫 You have reached today's %s limit (%d). Try again tomorrow.", quota.Feature, quota.Limit)
		}
	}

	if errors.Is(err, chat.ErrTokenLimitExceeded) {
		return "🚫 You have reached your daily token limit. Try again tomorrow."
	}

	var unavailable *llm.UnavailableError
	if errors.As(err, &unavailable) {
		return consts.MsgModelUnavailable
	}

	var proLimit *llm.ProLimitError
	if errors.As(err, &proLimit) {
		return fmt.Sprintf("🚫 The pro model allows %d requests per day. Switch models with /setmodel.", proLimit.Limit)
	}

	if errors.Is(err, chat.ErrEmptyMessage) {
		return consts.MsgGenericFailure
	}

	return consts.MsgGenericFailure
}

// footer is the usage line appended to every successful chat reply.
func footer(reply *chat.Reply) string {
	return fmt.Sprintf("\n\n_%s · %d requests, %d tokens left today_",
		reply.ModelName, reply.RequestsLeft, reply.TokensLeft)
}
