package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/document"
	"github.com/Aman-20/Telegram-bot/internal/logger"
)

// Telegram bots cannot download files above 20 MB anyway; refuse earlier to
// save a round trip.
const maxFileSize = 20 * 1024 * 1024

func (b *Bot) handleDocumentMessage(message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	if !b.accessCtl.IsAdmin(chatKey(chatID)) && !b.isChannelMember(message.From.ID) {
		b.sendJoinPrompt(chatID)
		return nil
	}

	doc := message.Document
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if !document.Supported(ext) {
		b.sendResponse(chatID, consts.MsgUnsupportedFile)
		return nil
	}
	if doc.FileSize > maxFileSize {
		b.sendResponse(chatID, "⚠️ File is too large. Maximum size is 20 MB.")
		return nil
	}

	b.sendTyping(chatID)

	data, err := b.downloadFile(doc.FileID)
	if err != nil {
		logger.Error("Failed to download document", map[string]interface{}{
			"error":   err.Error(),
			"file_id": doc.FileID,
			"chat_id": chatID,
		})
		b.sendResponse(chatID, consts.MsgDownloadFailed)
		return nil
	}

	text, err := b.extractor.Extract(data, ext)
	if err == document.ErrEmpty {
		b.sendResponse(chatID, consts.MsgEmptyFile)
		return nil
	}
	if err != nil {
		logger.Warn("Document extraction failed", map[string]interface{}{
			"error":    err.Error(),
			"filename": doc.FileName,
			"chat_id":  chatID,
		})
		b.sendResponse(chatID, consts.MsgUnsupportedFile)
		return nil
	}

	summary, err := b.pipeline.AnalyzeDocument(context.Background(), chatKey(chatID), text)
	if err != nil {
		b.sendResponse(chatID, b.errorMessage(err))
		return nil
	}

	b.sendLongMessage(chatID, "📄 "+doc.FileName+"\n\n"+summary)
	return nil
}

func (b *Bot) handlePhotoMessage(message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	if !b.accessCtl.IsAdmin(chatKey(chatID)) && !b.isChannelMember(message.From.ID) {
		b.sendJoinPrompt(chatID)
		return nil
	}

	b.sendTyping(chatID)

	// The last entry is the largest resolution Telegram offers.
	photo := message.Photo[len(message.Photo)-1]
	data, err := b.downloadFile(photo.FileID)
	if err != nil {
		logger.Error("Failed to download photo", map[string]interface{}{
			"error":   err.Error(),
			"file_id": photo.FileID,
			"chat_id": chatID,
		})
		b.sendResponse(chatID, consts.MsgDownloadFailed)
		return nil
	}

	description, err := b.pipeline.AnalyzeImage(context.Background(), chatKey(chatID), data)
	if err != nil {
		b.sendResponse(chatID, b.errorMessage(err))
		return nil
	}

	b.sendLongMessage(chatID, "🖼 "+description)
	return nil
}

func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	resp, err := http.Get(file.Link(b.api.Token))
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileSize)
	}

	return data, nil
}
