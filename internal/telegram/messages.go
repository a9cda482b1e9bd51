package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Aman-20/Telegram-bot/internal/chat"
	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/logger"
)

func (b *Bot) handleTextMessage(message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	// Reply keyboard buttons are shortcuts, not messages.
	switch message.Text {
	case consts.ButtonSearch:
		b.sendResponse(chatID, "🔍 Use /search <query> to search the web.")
		return nil
	case consts.ButtonImagine:
		b.sendResponse(chatID, "🎨 Use /imagine <prompt> to generate an image.")
		return nil
	case consts.ButtonSetModel:
		return b.handleSetModelCommand(message)
	case consts.ButtonDocs:
		b.sendResponse(chatID, "📄 Send me a PDF, DOCX or TXT file and I will summarize it.")
		return nil
	}

	if !b.accessCtl.IsAdmin(chatKey(chatID)) && !b.isChannelMember(message.From.ID) {
		b.sendJoinPrompt(chatID)
		return nil
	}

	if isLink(message.Text) {
		b.sendResponse(chatID, consts.MsgLinksBlocked)
		return nil
	}

	b.sendTyping(chatID)

	reply, err := b.pipeline.Process(context.Background(), chat.Inbound{
		UserID:   chatKey(chatID),
		Text:     message.Text,
		Language: b.userLang(chatID),
	})
	if err != nil {
		b.sendResponse(chatID, b.errorMessage(err))
		logger.Debug("Message rejected", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return nil
	}

	b.sendLongMessage(chatID, reply.Text+footer(reply))
	return nil
}
