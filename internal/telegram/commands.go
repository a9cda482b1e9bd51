package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Aman-20/Telegram-bot/internal/access"
	"github.com/Aman-20/Telegram-bot/internal/consts"
	"github.com/Aman-20/Telegram-bot/internal/conversation"
	"github.com/Aman-20/Telegram-bot/internal/database"
	"github.com/Aman-20/Telegram-bot/internal/logger"
	"github.com/Aman-20/Telegram-bot/internal/usage"
)

const welcomeTemplate = `👋 Hello %s!

I am an AI assistant bot. Send me a message and I will answer using the model of your choice.

Commands:
/help - show all commands
/status - your remaining daily budget
/setmodel - choose the AI model
/language - choose the reply language
/search <query> - search the web
/imagine <prompt> - generate an image
/clearchat - erase your conversation history

You can also send PDF, DOCX or TXT files and photos for analysis.`

const helpText = `📖 Commands

/start - welcome message
/status - remaining requests and tokens for today
/account - approval status and feature usage
/setmodel - choose the AI model
/language - choose the reply language
/search <query> - web search
/imagine <prompt> - image generation
/clearchat - erase conversation history
/about - about this bot
/terms - terms of use`

const aboutText = `🤖 A multi-model AI chat bot.

Supports Gemini, OpenAI and Claude models with per-day usage budgets. Conversation context is kept so follow-up questions work naturally.`

const termsText = `📜 Terms of use

• Daily request and token budgets apply to every account.
• Access may be time-limited and is granted by the admin.
• Conversations are stored to provide context and can be erased with /clearchat.
• Do not use the bot for illegal content.`

func (b *Bot) handleCommand(message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	command := message.Command()
	args := strings.TrimSpace(message.CommandArguments())
	key := chatKey(chatID)
	isAdmin := b.accessCtl.IsAdmin(key)

	logger.Debug("Handling command", map[string]interface{}{
		"command": command,
		"chat_id": chatID,
	})

	// Admins bypass command cooldowns.
	if !isAdmin {
		if err := b.limiter.CheckCommand(key, command); err != nil {
			b.sendResponse(chatID, b.errorMessage(err))
			return nil
		}
	}

	switch command {
	case consts.CmdStart:
		return b.handleStartCommand(message)
	case consts.CmdHelp:
		b.sendResponse(chatID, helpText)
	case consts.CmdAbout:
		b.sendResponse(chatID, aboutText)
	case consts.CmdTerms:
		b.sendResponse(chatID, termsText)
	case consts.CmdStatus:
		return b.handleStatusCommand(message)
	case consts.CmdAccount:
		return b.handleAccountCommand(message)
	case consts.CmdClearChat:
		return b.handleClearChatCommand(message)
	case consts.CmdLanguage:
		return b.handleLanguageCommand(message)
	case consts.CmdSetModel:
		return b.handleSetModelCommand(message)
	case consts.CmdSearch:
		return b.handleSearchCommand(message, args)
	case consts.CmdImagine:
		return b.handleImagineCommand(message, args)

	case consts.CmdApprove:
		return b.adminOnly(message, func() error { return b.handleApproveCommand(message, args) })
	case consts.CmdRemove:
		return b.adminOnly(message, func() error { return b.handleRemoveCommand(message, args) })
	case consts.CmdUsers:
		return b.adminOnly(message, func() error { return b.handleUsersCommand(message) })
	case consts.CmdBroadcast:
		return b.adminOnly(message, func() error { return b.handleBroadcastCommand(message, args) })
	case consts.CmdUsage:
		return b.adminOnly(message, func() error { return b.handleUsageCommand(message, args) })
	case consts.CmdMode:
		return b.adminOnly(message, func() error { return b.handleModeCommand(message) })
	case consts.CmdPublic:
		return b.adminOnly(message, func() error { return b.handlePublicCommand(message, true) })
	case consts.CmdPrivate:
		return b.adminOnly(message, func() error { return b.handlePublicCommand(message, false) })

	default:
		b.sendResponse(chatID, "Unknown command. Use /help to see what I can do.")
	}

	return nil
}

// adminOnly rejects non-admin callers before running the handler.
func (b *Bot) adminOnly(message *tgbotapi.Message, fn func() error) error {
	if !b.accessCtl.IsAdmin(chatKey(message.Chat.ID)) {
		b.sendResponse(message.Chat.ID, consts.MsgUnauthorized)
		return nil
	}
	return fn()
}

func (b *Bot) handleStartCommand(message *tgbotapi.Message) error {
	name := message.From.FirstName
	if name == "" {
		name = "there"
	}

	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(consts.ButtonSearch),
			tgbotapi.NewKeyboardButton(consts.ButtonImagine),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(consts.ButtonSetModel),
			tgbotapi.NewKeyboardButton(consts.ButtonDocs),
		),
	)
	keyboard.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf(welcomeTemplate, name))
	msg.ReplyMarkup = keyboard
	if _, err := b.rateLimitedSend(msg); err != nil {
		return fmt.Errorf("failed to send welcome message: %w", err)
	}
	return nil
}

func (b *Bot) handleStatusCommand(message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	requests, tokens, err := b.pipeline.Status(context.Background(), chatKey(chatID))
	if err != nil {
		b.sendResponse(chatID, consts.MsgGenericFailure)
		return fmt.Errorf("failed to load status: %w", err)
	}

	model := b.router.SelectedModel(chatKey(chatID))
	b.sendResponse(chatID, fmt.Sprintf(
		"📊 Today's budget\n\nRequests left: %d\nTokens left: %d\nModel: %s",
		requests, tokens, model.Name))
	return nil
}

func (b *Bot) handleAccountCommand(message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	ctx := context.Background()

	acct, err := b.db.GetAccount(ctx, chatKey(chatID))
	if err != nil {
		b.sendResponse(chatID, consts.MsgGenericFailure)
		return fmt.Errorf("failed to load account: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("👤 Your account\n\n")

	switch {
	case b.accessCtl.IsAdmin(chatKey(chatID)):
		sb.WriteString("Role: admin\n")
	case b.accessCtl.PublicMode():
		sb.WriteString("Access: open (public mode)\n")
	case acct != nil && acct.IsApproved(time.Now()):
		sb.WriteString(fmt.Sprintf("Approved until: %s\n", acct.ApprovedUntil.Format("2006-01-02 15:04 MST")))
	default:
		sb.WriteString("Access: not approved\n")
	}

	counts := b.ledger.Snapshot(chatKey(chatID))
	sb.WriteString(fmt.Sprintf("\nToday's features:\nSearch: %d/%d\nImagine: %d/%d\nDocuments: %d/%d\nImages: %d/%d\nPro model: %d/%d",
		counts[usage.FeatureSearch], b.config.SearchLimit,
		counts[usage.FeatureImagine], b.config.ImagineLimit,
		counts[usage.FeatureDoc], b.config.DocAnalysisLimit,
		counts[usage.FeatureImage], b.config.ImageAnalysisLimit,
		counts[usage.FeaturePro], b.config.ProModelLimit))

	b.sendResponse(chatID, sb.String())
	return nil
}

func (b *Bot) handleClearChatCommand(message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	err := b.convs.Clear(context.Background(), chatKey(chatID))
	if err == conversation.ErrNotFound {
		b.sendResponse(chatID, consts.MsgNoHistory)
		return nil
	}
	if err != nil {
		b.sendResponse(chatID, consts.MsgGenericFailure)
		return fmt.Errorf("failed to clear history: %w", err)
	}

	b.sendResponse(chatID, consts.MsgHistoryCleared)
	return nil
}

func (b *Bot) handleLanguageCommand(message *tgbotapi.Message) error {
	var rows [][]tgbotapi.InlineKeyboardButton
	row := []tgbotapi.InlineKeyboardButton{}
	for _, code := range consts.LanguageOrder {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(consts.Languages[code], "lang_"+code))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "🌐 Choose your reply language:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.rateLimitedSend(msg); err != nil {
		return fmt.Errorf("failed to send language keyboard: %w", err)
	}
	return nil
}

func (b *Bot) handleSetModelCommand(message *tgbotapi.Message) error {
	selected := b.router.SelectedModel(chatKey(message.Chat.ID))

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, mc := range b.router.Catalog() {
		label := mc.Name
		data := "model_" + mc.ID
		switch {
		case !mc.Available:
			label = "🚫 " + label
			data = "unavailable_" + mc.ID
		case mc.ID == selected.ID:
			label = "✅ " + label
		case mc.ProLimited:
			label = "⭐ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "🤖 Choose a model:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.rateLimitedSend(msg); err != nil {
		return fmt.Errorf("failed to send model keyboard: %w", err)
	}
	return nil
}

func (b *Bot) handleSearchCommand(message *tgbotapi.Message, query string) error {
	chatID := message.Chat.ID
	if query == "" {
		b.sendResponse(chatID, "Usage: /search <query>")
		return nil
	}

	if !b.accessCtl.IsAdmin(chatKey(chatID)) && !b.isChannelMember(message.From.ID) {
		b.sendJoinPrompt(chatID)
		return nil
	}

	b.sendTyping(chatID)

	results, err := b.pipeline.Search(context.Background(), chatKey(chatID), query)
	if err != nil {
		b.sendResponse(chatID, b.errorMessage(err))
		return nil
	}
	if results == "" {
		b.sendResponse(chatID, "🔍 No results found.")
		return nil
	}

	b.sendLongMessage(chatID, "🔍 Results for \""+query+"\":\n\n"+results)
	return nil
}

func (b *Bot) handleImagineCommand(message *tgbotapi.Message, prompt string) error {
	chatID := message.Chat.ID
	if prompt == "" {
		b.sendResponse(chatID, "Usage: /imagine <prompt>")
		return nil
	}

	if !b.accessCtl.IsAdmin(chatKey(chatID)) && !b.isChannelMember(message.From.ID) {
		b.sendJoinPrompt(chatID)
		return nil
	}

	imageURL, err := b.pipeline.ImagineURL(context.Background(), chatKey(chatID), prompt)
	if err != nil {
		b.sendResponse(chatID, b.errorMessage(err))
		return nil
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(imageURL))
	photo.Caption = "🎨 " + prompt
	if _, err := b.rateLimitedSend(photo); err != nil {
		logger.Warn("Failed to send generated image, falling back to link", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
		b.sendResponse(chatID, "🎨 Your image: "+imageURL)
	}
	return nil
}

// Admin commands

func (b *Bot) handleApproveCommand(message *tgbotapi.Message, args string) error {
	chatID := message.Chat.ID
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.sendResponse(chatID, "Usage: /approve <chat_id> [hours]")
		return nil
	}

	target := fields[0]
	if _, err := strconv.ParseInt(target, 10, 64); err != nil {
		b.sendResponse(chatID, "⚠️ Invalid chat id.")
		return nil
	}

	hours := b.config.ApprovalExpiryHours
	if len(fields) > 1 {
		parsed, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || parsed <= 0 {
			b.sendResponse(chatID, "⚠️ Invalid hours value.")
			return nil
		}
		hours = parsed
	}

	until, err := b.accessCtl.Approve(context.Background(), target, time.Duration(hours*float64(time.Hour)))
	if err != nil {
		b.sendResponse(chatID, consts.MsgGenericFailure)
		return fmt.Errorf("failed to approve user: %w", err)
	}

	b.sendResponse(chatID, fmt.Sprintf("✅ Approved %s until %s", target, until.Format("2006-01-02 15:04 MST")))

	if targetID, err := strconv.ParseInt(target, 10, 64); err == nil {
		b.sendResponse(targetID, fmt.Sprintf("🎉 You have been approved until %s. Say hi!", until.Format("2006-01-02 15:04 MST")))
	}
	return nil
}

func (b *Bot) handleRemoveCommand(message *tgbotapi.Message, args string) error {
	chatID := message.Chat.ID
	if args == "" {
		b.sendResponse(chatID, "Usage: /remove <chat_id>")
		return nil
	}

	err := b.accessCtl.Revoke(context.Background(), args)
	if err == access.ErrUnauthorized {
		b.sendResponse(chatID, "⚠️ The admin account cannot be removed.")
		return nil
	}
	if err != nil {
		b.sendResponse(chatID, consts.MsgGenericFailure)
		return fmt.Errorf("failed to revoke user: %w", err)
	}

	b.sendResponse(chatID, fmt.Sprintf("🗑 Removed approval for %s", args))
	return nil
}

func (b *Bot) handleUsersCommand(message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	accounts, err := b.db.ListApproved(context.Background(), time.Now())
	if err != nil {
		b.sendResponse(chatID, consts.MsgGenericFailure)
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(accounts) == 0 {
		b.sendResponse(chatID, "No approved users.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 Approved users (%d):\n\n", len(accounts)))
	for _, acct := range accounts {
		sb.WriteString(fmt.Sprintf("%s - until %s, %d req / %d tokens today\n",
			acct.ChatID, acct.ApprovedUntil.Format("2006-01-02 15:04"),
			acct.RequestsToday, acct.TokensUsedToday))
	}

	b.sendLongMessage(chatID, sb.String())
	return nil
}

func (b *Bot) handleBroadcastCommand(message *tgbotapi.Message, text string) error {
	chatID := message.Chat.ID
	if text == "" {
		b.sendResponse(chatID, "Usage: /broadcast <message>")
		return nil
	}

	accounts, err := b.db.ListAccounts(context.Background())
	if err != nil {
		b.sendResponse(chatID, consts.MsgGenericFailure)
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	sent, failed := broadcast(accounts, chatID, "📢 "+text, func(targetID int64, text string) error {
		_, err := b.rateLimitedSend(tgbotapi.NewMessage(targetID, text))
		return err
	})
	b.metrics.BroadcastsSent.Add(float64(sent))

	b.sendResponse(chatID, fmt.Sprintf("📢 Broadcast done: %d sent, %d failed.", sent, failed))
	return nil
}

// broadcast delivers text to every account except the sender, continuing past
// failed recipients.
func broadcast(accounts []*database.Account, senderID int64, text string,
	deliver func(chatID int64, text string) error) (sent, failed int) {
	for _, acct := range accounts {
		targetID, err := strconv.ParseInt(acct.ChatID, 10, 64)
		if err != nil || targetID == senderID {
			continue
		}
		if err := deliver(targetID, text); err != nil {
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

func (b *Bot) handleUsageCommand(message *tgbotapi.Message, args string) error {
	chatID := message.Chat.ID

	switch args {
	case "":
		accounts, err := b.db.ListAccounts(context.Background())
		if err != nil {
			b.sendResponse(chatID, consts.MsgGenericFailure)
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		b.sendLongMessage(chatID, usageReport(accounts, b.ledger.Snapshot))
		return nil

	case "pool":
		stats := b.workerPool.Stats()
		b.sendResponse(chatID, fmt.Sprintf(
			"🛠 Worker pool\n\nMessage queue: %v\nCallback queue: %v\nActive operations: %v\nWorkers: %v",
			stats["message_queue"], stats["callback_queue"], stats["active_operations"], stats["workers"]))
		return nil
	}

	acct, err := b.db.GetAccount(context.Background(), args)
	if err != nil {
		b.sendResponse(chatID, consts.MsgGenericFailure)
		return fmt.Errorf("failed to load account: %w", err)
	}
	if acct == nil {
		b.sendResponse(chatID, "⚠️ No account found for "+args)
		return nil
	}

	counts := b.ledger.Snapshot(args)
	b.sendResponse(chatID, fmt.Sprintf(
		"📊 Usage for %s\n\nRequests today: %d/%d\nTokens today: %d/%d\nSearch: %d\nImagine: %d\nDocuments: %d\nImages: %d\nPro model: %d",
		args,
		acct.RequestsToday, b.config.DailyRequestLimit,
		acct.TokensUsedToday, b.config.DailyTokenLimit,
		counts[usage.FeatureSearch], counts[usage.FeatureImagine],
		counts[usage.FeatureDoc], counts[usage.FeatureImage], counts[usage.FeaturePro]))
	return nil
}

// usageReport formats the all-users counter dump for /usage: durable daily
// counters from the account rows, feature counters from the ledger.
func usageReport(accounts []*database.Account, snapshot func(string) map[usage.Feature]int) string {
	if len(accounts) == 0 {
		return "No accounts yet."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 Usage (%d accounts):\n\n", len(accounts)))
	for _, acct := range accounts {
		counts := snapshot(acct.ChatID)
		sb.WriteString(fmt.Sprintf("%s: %d req, %d tokens | search %d, imagine %d, docs %d, images %d, pro %d\n",
			acct.ChatID, acct.RequestsToday, acct.TokensUsedToday,
			counts[usage.FeatureSearch], counts[usage.FeatureImagine],
			counts[usage.FeatureDoc], counts[usage.FeatureImage], counts[usage.FeaturePro]))
	}
	return sb.String()
}

func (b *Bot) handleModeCommand(message *tgbotapi.Message) error {
	mode := "PRIVATE"
	if b.accessCtl.PublicMode() {
		mode = "PUBLIC"
	}
	b.sendResponse(message.Chat.ID, "Current mode: "+mode)
	return nil
}

func (b *Bot) handlePublicCommand(message *tgbotapi.Message, public bool) error {
	b.accessCtl.SetPublicMode(public)
	if public {
		b.sendResponse(message.Chat.ID, consts.MsgPublicMode)
	} else {
		b.sendResponse(message.Chat.ID, consts.MsgPrivateMode)
	}
	return nil
}
