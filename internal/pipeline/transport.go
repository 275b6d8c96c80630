package pipeline

import (
	"context"

	"stillframe/internal/intake"
	"stillframe/internal/locale"
)

// Message is a localized message selected by the service.
type Message struct {
	Key  locale.Key
	Lang locale.Lang
	// AllLanguages renders the message once per supported language, joined.
	AllLanguages bool
	Vars         map[string]string
	// Append lists further keys sent in the same message, separated by a
	// blank line.
	Append []locale.Key
	// LanguageChoice attaches the language picker.
	LanguageChoice bool
	// Alert shows an acknowledgement as a modal alert rather than a toast.
	Alert bool
}

// Transport is the chat adapter the service reports back through.
type Transport interface {
	Emit(ctx context.Context, userID int64, msg Message) error
	DeliverVideo(ctx context.Context, userID int64, path string, caption Message) error
	// Fetch downloads the attachment's bytes to dest.
	Fetch(ctx context.Context, att intake.Attachment, dest string) error
}
