package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/storage"
	"github.com/rs/zerolog/log"
)

func makePlatformKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range platform.IDs() {
		c := platform.MustGet(id)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Name, "platform:"+string(id)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func makeLanguageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(BtnPrimary, "lang:"+string(meta.LanguagePrimary)),
		tgbotapi.NewInlineKeyboardButtonData(BtnSecondary, "lang:"+string(meta.LanguageSecondary)),
		tgbotapi.NewInlineKeyboardButtonData(BtnBoth, "lang:"+string(meta.LanguageBoth)),
	))
}

// handlePlatformCommand shows the marketplace keyboard, or sets the
// marketplace given as argument.
func (b *Bot) handlePlatformCommand(session *UserSession, args []string) {
	if len(args) == 0 || args[0] == "" {
		msg := tgbotapi.NewMessage(session.userId, MsgSelectPlatform)
		msg.ReplyMarkup = makePlatformKeyboard()
		session.replyWithMessage(msg)
		return
	}

	c, err := platform.Get(args[0])
	if err != nil {
		ids := make([]string, 0, len(platform.IDs()))
		for _, id := range platform.IDs() {
			ids = append(ids, string(id))
		}
		session.reply(MsgUnknownPlatform, escapeMarkdown(strings.Join(ids, ", ")))
		return
	}

	session.setPlatform(c.ID)
	b.saveSettings(session)
	session.reply(MsgPlatformSet, escapeMarkdown(c.Name))
}

// handleLanguageCommand shows the language keyboard, or sets the preference
// given as argument.
func (b *Bot) handleLanguageCommand(session *UserSession, args []string) {
	if len(args) == 0 || args[0] == "" {
		msg := tgbotapi.NewMessage(session.userId, MsgSelectLanguage)
		msg.ReplyMarkup = makeLanguageKeyboard()
		session.replyWithMessage(msg)
		return
	}

	pref, err := meta.ParseLanguage(args[0])
	if err != nil {
		session.reply(MsgUnknownLanguage)
		return
	}

	session.setLanguage(pref)
	b.saveSettings(session)
	session.reply(MsgLanguageSet, string(pref))
}

func (b *Bot) saveSettings(session *UserSession) {
	if b.store == nil {
		return
	}
	id, lang := session.Preferences()
	err := b.store.SaveUserSettings(&storage.UserSettings{
		TelegramID: session.userId,
		Platform:   string(id),
		Language:   string(lang),
	})
	if err != nil {
		log.Error().Err(err).Int64("userId", session.userId).Msg("failed to save settings")
		session.reply(MsgSettingsNotStored)
	}
}
