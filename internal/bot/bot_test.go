package bot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/stockmeta/internal/llm"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/raine/stockmeta/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	adminId = int64(1)
	userId  = int64(2)
)

type botApiMock struct {
	mock.Mock
}

func (m *botApiMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *botApiMock) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *botApiMock) GetFileDirectURL(fileID string) (string, error) {
	args := m.Called(fileID)
	return args.Get(0).(string), args.Error(1)
}

func TestMain(m *testing.M) {
	os.Setenv("GO_ENV", "test")
	os.Exit(m.Run())
}

func setup(t *testing.T) (*botApiMock, *Bot, *storage.SQLiteStore) {
	t.Helper()
	tg := new(botApiMock)
	// Typing actions and callback answers are fire and forget.
	tg.On("Request", mock.Anything).Return(&tgbotapi.APIResponse{Ok: true}, nil).Maybe()

	store, err := storage.NewSQLiteStore(":memory:", []byte("test-key-32-bytes-long-ok-test!!"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.AddAllowedUser(userId, adminId))

	bot := NewBot(tg, store, adminId)
	bot.SetGenerator(llm.MockGenerator{}, meta.DefaultBounds)
	t.Cleanup(bot.Shutdown)
	return tg, bot, store
}

func makeUpdateWithMessageText(userId int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userId},
			Text: text,
		},
	}
}

func makeMessage(userId int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(userId, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func sentText(contains string) any {
	return mock.MatchedBy(func(m tgbotapi.MessageConfig) bool {
		return strings.Contains(m.Text, contains)
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{240, 200, 60, 255}
			if y > 24 {
				c = color.RGBA{30, 60, 200, 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// sendPhoto serves a PNG for the photo's file id and processes the update.
func sendPhoto(t *testing.T, tg *botApiMock, bot *Bot, caption string) {
	t.Helper()
	data := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	t.Cleanup(server.Close)

	tg.On("GetFileDirectURL", "photo-1").Return(server.URL+"/photo.png", nil).Once()
	bot.handleUpdateSync(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			From:    &tgbotapi.User{ID: userId},
			Caption: caption,
			Photo: []tgbotapi.PhotoSize{
				{FileID: "photo-0", Width: 32, Height: 24},
				{FileID: "photo-1", Width: 64, Height: 48},
			},
		},
	})
}

func TestHandleUpdate_UnknownUserIsDropped(t *testing.T) {
	tg, bot, _ := setup(t)

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(999, "/start"))

	tg.AssertNotCalled(t, "Send", mock.Anything)
}

func TestHandleUpdate_Start(t *testing.T) {
	tg, bot, _ := setup(t)

	tg.On("Send", makeMessage(userId, formatReplyText(MsgStart))).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/start"))
	tg.AssertExpectations(t)
}

func TestHandleUpdate_Version(t *testing.T) {
	tg, bot, _ := setup(t)

	tg.On("Send", makeMessage(userId, formatReplyText(MsgVersionInfo, Version, BuildTime))).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/version@stockmeta_bot"))
	tg.AssertExpectations(t)
}

func TestHandleUpdate_Photo(t *testing.T) {
	tg, bot, store := setup(t)

	tg.On("Send", mock.MatchedBy(func(m tgbotapi.MessageConfig) bool {
		return m.ChatID == userId &&
			strings.HasPrefix(m.Text, "*Sunset Beach*") &&
			strings.Contains(m.Text, "*Keywords (") &&
			strings.Contains(m.Text, "sunset")
	})).Return(tgbotapi.Message{}, nil).Once()

	sendPhoto(t, tg, bot, "sunset beach")
	tg.AssertExpectations(t)

	records, err := store.GetRecentRecords(userId, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Sunset Beach", records[0].Record.Title)
	assert.Equal(t, string(platform.Shutterstock), records[0].Platform)
}

func TestHandleUpdate_PhotoKeywordCap(t *testing.T) {
	tg, bot, _ := setup(t)
	bot.SetMaxKeywords(2)

	tg.On("Send", mock.MatchedBy(func(m tgbotapi.MessageConfig) bool {
		return m.ChatID == userId && strings.Contains(m.Text, "*Keywords (2):*")
	})).Return(tgbotapi.Message{}, nil).Once()

	sendPhoto(t, tg, bot, "sunset beach")
	tg.AssertExpectations(t)
}

func TestHandleUpdate_UnsupportedDocument(t *testing.T) {
	tg, bot, _ := setup(t)

	tg.On("Send", makeMessage(userId, MsgUnsupportedFile)).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			From:     &tgbotapi.User{ID: userId},
			Document: &tgbotapi.Document{FileID: "doc", FileName: "notes.pdf", MimeType: "application/pdf"},
		},
	})
	tg.AssertExpectations(t)
}

func TestHandleUpdate_DownloadFailure(t *testing.T) {
	tg, bot, _ := setup(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tg.On("GetFileDirectURL", "photo-1").Return(server.URL, nil).Once()
	tg.On("Send", sentText("Could not download the photo")).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			From:  &tgbotapi.User{ID: userId},
			Photo: []tgbotapi.PhotoSize{{FileID: "photo-1"}},
		},
	})
	tg.AssertExpectations(t)
}

func TestHandleUpdate_PlatformKeyboard(t *testing.T) {
	tg, bot, _ := setup(t)

	tg.On("Send", mock.MatchedBy(func(m tgbotapi.MessageConfig) bool {
		kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		return ok && m.Text == MsgSelectPlatform && len(kb.InlineKeyboard) == len(platform.IDs())
	})).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/platform"))
	tg.AssertExpectations(t)
}

func TestHandleUpdate_SetPlatform(t *testing.T) {
	tg, bot, store := setup(t)

	tg.On("Send", makeMessage(userId, formatReplyText(MsgPlatformSet, "Adobe Stock"))).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/platform adobe_stock"))
	tg.AssertExpectations(t)

	settings, err := store.GetUserSettings(userId)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "adobe_stock", settings.Platform)
	assert.Equal(t, string(meta.LanguageBoth), settings.Language)

	// A fresh bot picks the stored preference up.
	other := NewBot(tg, store, adminId)
	defer other.Shutdown()
	id, _ := other.state.getUserSession(userId).Preferences()
	assert.Equal(t, platform.AdobeStock, id)
}

func TestHandleUpdate_UnknownPlatform(t *testing.T) {
	tg, bot, _ := setup(t)

	tg.On("Send", sentText("Unknown marketplace")).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/platform flickr"))
	tg.AssertExpectations(t)
}

func TestHandleUpdate_Language(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"keyboard", "/lang", MsgSelectLanguage},
		{"primary", "/lang primary", formatReplyText(MsgLanguageSet, "primary")},
		{"unknown", "/lang klingon", MsgUnknownLanguage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg, bot, _ := setup(t)
			tg.On("Send", mock.MatchedBy(func(m tgbotapi.MessageConfig) bool {
				return m.Text == tt.want
			})).Return(tgbotapi.Message{}, nil).Once()

			bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, tt.text))
			tg.AssertExpectations(t)
		})
	}
}

func TestHandleCallback_Language(t *testing.T) {
	tg, bot, _ := setup(t)

	tg.On("Send", makeMessage(userId, formatReplyText(MsgLanguageSet, "secondary"))).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb",
			From: &tgbotapi.User{ID: userId},
			Data: "lang:secondary",
			Message: &tgbotapi.Message{
				MessageID: 5,
				Chat:      &tgbotapi.Chat{ID: userId},
			},
		},
	})
	tg.AssertExpectations(t)
	tg.AssertCalled(t, "Request", tgbotapi.NewCallback("cb", ""))

	_, lang := bot.state.getUserSession(userId).Preferences()
	assert.Equal(t, meta.LanguageSecondary, lang)
}

func TestHandleUpdate_TrendsWithoutRecords(t *testing.T) {
	tg, bot, _ := setup(t)

	tg.On("Send", makeMessage(userId, MsgNoRecords)).Return(tgbotapi.Message{}, nil).Twice()

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/trends"))
	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/export"))
	tg.AssertExpectations(t)
}

func TestHandleUpdate_TrendsAndExport(t *testing.T) {
	tg, bot, _ := setup(t)

	tg.On("Send", sentText("*Keywords (")).Return(tgbotapi.Message{}, nil).Once()
	sendPhoto(t, tg, bot, "sunset beach")

	tg.On("Send", mock.MatchedBy(func(m tgbotapi.MessageConfig) bool {
		return strings.HasPrefix(m.Text, "*Trends over your last 1 photo*") &&
			strings.Contains(m.Text, ". sunset (") &&
			strings.Contains(m.Text, "Average SEO score:")
	})).Return(tgbotapi.Message{}, nil).Once()
	tg.On("Send", mock.MatchedBy(func(p tgbotapi.PhotoConfig) bool {
		file, ok := p.File.(tgbotapi.FileBytes)
		return ok && p.Caption == MsgTrendsCaption && bytes.HasPrefix(file.Bytes, []byte("\x89PNG"))
	})).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/trends"))

	tg.On("Send", mock.MatchedBy(func(d tgbotapi.DocumentConfig) bool {
		file, ok := d.File.(tgbotapi.FileBytes)
		return ok &&
			d.Caption == "Metadata for Shutterstock" &&
			file.Name == "stockmeta-shutterstock.csv" &&
			strings.Contains(string(file.Bytes), "Sunset Beach")
	})).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/export"))
	tg.AssertExpectations(t)
}

func TestHandleUpdate_Uploads(t *testing.T) {
	tg, bot, store := setup(t)

	tg.On("Send", makeMessage(userId, MsgNoUploads)).Return(tgbotapi.Message{}, nil).Once()
	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/uploads"))

	require.NoError(t, store.CreateUpload(&storage.Upload{
		OwnerID:  userId,
		Platform: "shutterstock",
		Path:     "/photos/sunset_beach.jpg",
		RemoteID: "remote-1",
		Status:   storage.UploadApproved,
	}))
	tg.On("Send", makeMessage(userId, MsgUploadsHeader+"• ✅ sunset\\_beach.jpg (shutterstock)\n")).Return(tgbotapi.Message{}, nil).Once()
	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/uploads"))

	tg.AssertExpectations(t)
}

func TestHandleUpdate_AdminCommands(t *testing.T) {
	tg, bot, store := setup(t)

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgAdminUserAdded, 555))).Return(tgbotapi.Message{}, nil).Once()
	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(adminId, "/allow 555"))

	allowed, err := store.IsUserAllowed(555)
	require.NoError(t, err)
	assert.True(t, allowed)

	tg.On("Send", mock.MatchedBy(func(m tgbotapi.MessageConfig) bool {
		return m.ChatID == adminId && strings.HasPrefix(m.Text, MsgAdminUsersHeader) && strings.Contains(m.Text, "`555`")
	})).Return(tgbotapi.Message{}, nil).Once()
	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(adminId, "/users"))

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgAdminUserRemoved, 555))).Return(tgbotapi.Message{}, nil).Once()
	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(adminId, "/deny 555"))

	tg.On("Send", makeMessage(adminId, MsgAdminInvalidID)).Return(tgbotapi.Message{}, nil).Once()
	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(adminId, "/allow abc"))

	tg.AssertExpectations(t)

	allowed, err = store.IsUserAllowed(555)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHandleUpdate_AdminCommandsIgnoredForUsers(t *testing.T) {
	tg, bot, store := setup(t)

	bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(userId, "/allow 555"))

	tg.AssertNotCalled(t, "Send", mock.Anything)
	allowed, err := store.IsUserAllowed(555)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestImageFilename(t *testing.T) {
	tests := []struct {
		name    string
		message *tgbotapi.Message
		want    string
	}{
		{"photo", &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{{FileID: "a"}}}, "photo.jpg"},
		{"document", &tgbotapi.Message{Document: &tgbotapi.Document{FileName: "Beach.PNG"}}, "Beach.png"},
		{"caption wins", &tgbotapi.Message{Caption: "golden hour, city!", Document: &tgbotapi.Document{FileName: "IMG_1.tif"}}, "golden_hour_city.tif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, imageFilename(tt.message))
		})
	}
}
