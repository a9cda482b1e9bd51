package consts

// Bot commands
const (
	CmdStart     = "start"
	CmdHelp      = "help"
	CmdAbout     = "about"
	CmdStatus    = "status"
	CmdAccount   = "account"
	CmdTerms     = "terms"
	CmdClearChat = "clearchat"
	CmdLanguage  = "language"
	CmdSetModel  = "setmodel"
	CmdSearch    = "search"
	CmdImagine   = "imagine"

	// Admin commands
	CmdApprove   = "approve"
	CmdRemove    = "remove"
	CmdUsers     = "users"
	CmdBroadcast = "broadcast"
	CmdUsage     = "usage"
	CmdMode      = "mode"
	CmdPublic    = "public"
	CmdPrivate   = "private"
)

// Reply keyboard labels
const (
	ButtonSearch   = "🔍 Search"
	ButtonImagine  = "🎨 Imagine"
	ButtonSetModel = "🤖 Set Model"
	ButtonDocs     = "📄 Document Analysis"
)

// User-facing messages
const (
	MsgNoAccess         = "🚧 You do not have access. Contact the admin for approval."
	MsgAccessExpired    = "🚧 Your approval has expired. Contact the admin to renew it."
	MsgJoinChannel      = "⚠️ You must join our channel first to use this bot."
	MsgUnauthorized     = "⚠️ Unauthorized"
	MsgAdminOnly        = "⛔ Admin only command"
	MsgModelUnavailable = "⚠ This model is not available right now. Please choose another using /setmodel"
	MsgNoHistory        = "⚠️ No chat history found."
	MsgHistoryCleared   = "🧹 Your chat history has been cleared."
	MsgLinksBlocked     = "⚠️ Links are not allowed. Please send text, document, or image."
	MsgUnsupportedFile  = "⚠️ Only PDF, DOCX or TXT files are supported."
	MsgEmptyFile        = "⚠️ No readable text found in this file."
	MsgDownloadFailed   = "⚠️ Could not download your file."
	MsgGenericFailure   = "❌ Something went wrong. Please try again later."
	MsgPublicMode       = "🔓 Bot is now in PUBLIC mode"
	MsgPrivateMode      = "🔒 Bot is now in PRIVATE mode"
)

// Outbound message chunking threshold, in runes. Telegram caps messages at
// 4096; chunk a little below it to leave headroom for formatting.
const MaxMessageLength = 4000

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Supported interface languages, code -> display name.
var Languages = map[string]string{
	"en": "🇬🇧 English",
	"hi": "🇮🇳 Hindi",
	"es": "🇪🇸 Spanish",
	"fr": "🇫🇷 French",
	"de": "🇩🇪 German",
	"ja": "🇯🇵 Japanese",
	"ru": "🇷🇺 Russian",
	"ar": "🇸🇦 Arabic",
}

// LanguageOrder keeps keyboard layout stable across restarts.
var LanguageOrder = []string{"en", "hi", "es", "fr", "de", "ja", "ru", "ar"}

const DefaultLanguage = "en"
