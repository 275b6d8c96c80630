package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stillframe/internal/intake"
	"stillframe/internal/locale"
	"stillframe/internal/pipeline"
)

// API is the subset of Client the transport and dispatcher use.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, alert bool) error
	GetFile(ctx context.Context, fileID string) (File, error)
	DownloadFile(ctx context.Context, filePath, dest string) error
	SendVideo(ctx context.Context, chatID int64, path, caption string) error
}

// Transport implements pipeline.Transport over the Bot API. Users talk to the
// bot in private chats, so the user id doubles as the chat id.
type Transport struct {
	api     API
	catalog *locale.Catalog
}

// NewTransport returns a Transport rendering text from catalog.
func NewTransport(api API, catalog *locale.Catalog) *Transport {
	if catalog == nil {
		catalog = locale.Default()
	}
	return &Transport{api: api, catalog: catalog}
}

// Render turns a Message into the text sent to the user.
func (t *Transport) Render(msg pipeline.Message) string {
	if msg.AllLanguages {
		return t.catalog.TextAll(msg.Key, msg.Vars)
	}
	if len(msg.Append) == 0 {
		return t.catalog.Text(msg.Lang, msg.Key, msg.Vars)
	}
	parts := make([]string, 0, 1+len(msg.Append))
	parts = append(parts, t.catalog.Text(msg.Lang, msg.Key, msg.Vars))
	for _, key := range msg.Append {
		parts = append(parts, t.catalog.Text(msg.Lang, key, msg.Vars))
	}
	return strings.Join(parts, "\n\n")
}

// Emit sends one message.
func (t *Transport) Emit(ctx context.Context, userID int64, msg pipeline.Message) error {
	var markup *InlineKeyboardMarkup
	if msg.LanguageChoice {
		markup = LanguageKeyboard()
	}
	return t.api.SendMessage(ctx, userID, t.Render(msg), markup)
}

// DeliverVideo uploads the rendered video with a localized caption.
func (t *Transport) DeliverVideo(ctx context.Context, userID int64, path string, caption pipeline.Message) error {
	return t.api.SendVideo(ctx, userID, path, t.Render(caption))
}

// Fetch downloads the attachment to dest.
func (t *Transport) Fetch(ctx context.Context, att intake.Attachment, dest string) error {
	if att.FileID == "" {
		return errors.New("attachment has no file id")
	}
	file, err := t.api.GetFile(ctx, att.FileID)
	if err != nil {
		return fmt.Errorf("resolve file: %w", err)
	}
	return t.api.DownloadFile(ctx, file.FilePath, dest)
}

// LanguageKeyboard returns the RU/EN picker. Button data is "lang:<code>".
func LanguageKeyboard() *InlineKeyboardMarkup {
	row := make([]InlineKeyboardButton, 0, len(locale.Supported))
	for _, lang := range locale.Supported {
		row = append(row, InlineKeyboardButton{Text: lang.String(), CallbackData: languageCallbackPrefix + lang.String()})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{row}}
}

var _ pipeline.Transport = (*Transport)(nil)
