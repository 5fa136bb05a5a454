package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/stockmeta/internal/llm"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/storage"
	"github.com/rs/zerolog/log"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Store is the persistence the bot needs.
type Store interface {
	SaveRecord(rec *storage.StoredRecord) error
	CreateUpload(u *storage.Upload) error
	GetRecentRecords(ownerID int64, limit int) ([]storage.StoredRecord, error)
	GetUploadsByOwner(ownerID int64, limit int) ([]storage.Upload, error)

	GetUserSettings(telegramID int64) (*storage.UserSettings, error)
	SaveUserSettings(settings *storage.UserSettings) error

	IsUserAllowed(telegramID int64) (bool, error)
	AddAllowedUser(telegramID, addedBy int64) error
	RemoveAllowedUser(telegramID int64) error
	GetAllowedUsers() ([]storage.AllowedUser, error)
}

type defaults struct {
	platform platform.ID
	language meta.LanguagePreference
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg          BotAPI
	state       *BotState
	store       Store
	generator   llm.Generator
	bounds      meta.KeywordBounds
	maxKeywords int
	downloader  *ImageDownloader
	adminID     int64
	defaults    defaults
}

// NewBot creates a new Bot instance. Without SetGenerator photos get
// filename and color based metadata only.
func NewBot(tg BotAPI, store Store, adminID int64) *Bot {
	bot := &Bot{
		tg:         tg,
		store:      store,
		adminID:    adminID,
		downloader: NewImageDownloader(),
		defaults:   defaults{platform: platform.DefaultID, language: meta.LanguageBoth},
	}
	bot.state = bot.NewBotState()
	return bot
}

// SetGenerator sets the metadata generator and keyword length bounds.
func (b *Bot) SetGenerator(gen llm.Generator, bounds meta.KeywordBounds) {
	b.generator = gen
	b.bounds = bounds
}

// SetDefaults sets the marketplace and language of users without stored
// preferences.
func (b *Bot) SetDefaults(id platform.ID, pref meta.LanguagePreference) {
	b.defaults = defaults{platform: id, language: pref}
}

// SetMaxKeywords caps the keyword count below the marketplace limits.
func (b *Bot) SetMaxKeywords(n int) {
	b.maxKeywords = n
}

// constraints returns the marketplace limits for id with the keyword cap
// applied.
func (b *Bot) constraints(id platform.ID) (platform.Constraints, error) {
	c, err := platform.Get(string(id))
	if err != nil {
		return c, err
	}
	return c.CapKeywords(b.maxKeywords), nil
}

// Shutdown stops all session workers.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var userId int64

	if update.CallbackQuery != nil {
		userId = update.CallbackQuery.From.ID
	} else if update.Message != nil && update.Message.From != nil {
		userId = update.Message.From.ID
	} else {
		return
	}

	// Check if user is allowed (admin always allowed)
	// MUST be before getUserSession to prevent memory exhaustion from random user IDs
	if userId != b.adminID {
		allowed, err := b.store.IsUserAllowed(userId)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userId).Msg("whitelist check failed")
			return // Fail closed
		}
		if !allowed {
			return // Silent drop
		}
	}

	session := b.state.getUserSession(userId)

	msg := SessionMessage{Ctx: ctx}
	switch {
	case update.CallbackQuery != nil:
		msg.Type = "callback"
		msg.CallbackQuery = update.CallbackQuery
	case len(update.Message.Photo) > 0 || update.Message.Document != nil:
		msg.Type = "image"
		msg.Message = update.Message
	default:
		log.Info().Str("text", update.Message.Text).Int64("userId", userId).Msg("got message")
		msg.Type = "text"
		msg.Message = update.Message
	}

	if sync {
		session.SendSync(msg)
	} else {
		session.Send(msg)
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case "callback":
		b.handleCallbackQuery(session, msg.CallbackQuery)
	case "image":
		b.handleImage(ctx, session, msg.Message)
	case "text":
		b.handleCommand(session, msg.Message)
	}
}

// handleCommand processes bot commands.
// Called from session worker - no locking needed.
func (b *Bot) handleCommand(session *UserSession, message *tgbotapi.Message) {
	command, args := parseCommand(message.Text)
	switch command {
	case "/platform":
		b.handlePlatformCommand(session, args)
	case "/lang":
		b.handleLanguageCommand(session, args)
	case "/trends":
		b.handleTrendsCommand(session)
	case "/export":
		b.handleExportCommand(session)
	case "/uploads":
		b.handleUploadsCommand(session)
	case "/allow", "/deny", "/users":
		b.handleAdminCommand(session, command, args)
	case "/version":
		session.reply(MsgVersionInfo, Version, BuildTime)
	default:
		session.reply(MsgStart)
	}
}

// handleCallbackQuery handles inline keyboard button presses.
// Called from session worker - no locking needed.
func (b *Bot) handleCallbackQuery(session *UserSession, query *tgbotapi.CallbackQuery) {
	// Answer the callback to remove the loading state
	b.tg.Request(tgbotapi.NewCallback(query.ID, ""))

	// Remove the inline keyboard
	if query.Message != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(
			query.Message.Chat.ID,
			query.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
		)
		b.tg.Request(edit)
	}

	kind, value, _ := strings.Cut(query.Data, ":")
	switch kind {
	case "platform":
		b.handlePlatformCommand(session, []string{value})
	case "lang":
		b.handleLanguageCommand(session, []string{value})
	}
}

// handleAdminCommand handles /allow, /deny and /users.
// Only the admin user can use these commands (defense in depth check).
func (b *Bot) handleAdminCommand(session *UserSession, command string, args []string) {
	// Defense in depth: verify caller is admin even though whitelist check passed
	if session.userId != b.adminID {
		return // Silent drop for non-admin users
	}

	if command == "/users" {
		users, err := b.store.GetAllowedUsers()
		if err != nil {
			session.replyWithError(err)
			return
		}
		if len(users) == 0 {
			session.reply(MsgAdminNoUsers)
			return
		}
		var sb strings.Builder
		sb.WriteString(MsgAdminUsersHeader)
		for _, u := range users {
			sb.WriteString("• `" + strconv.FormatInt(u.TelegramID, 10) + "` (added " + u.AddedAt.Format("2006-01-02") + ")\n")
		}
		session._reply(sb.String(), false)
		return
	}

	usage := MsgAdminAllowUsage
	if command == "/deny" {
		usage = MsgAdminDenyUsage
	}
	if len(args) < 1 {
		session.reply(usage)
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		session.reply(MsgAdminInvalidID)
		return
	}

	if command == "/allow" {
		if err := b.store.AddAllowedUser(userID, session.userId); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserAdded, userID)
		return
	}
	if err := b.store.RemoveAllowedUser(userID); err != nil {
		session.replyWithError(err)
		return
	}
	session.reply(MsgAdminUserRemoved, userID)
}
