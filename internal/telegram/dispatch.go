package telegram

import (
	"context"
	"log/slog"
	"strings"

	"stillframe/internal/intake"
	"stillframe/internal/logging"
	"stillframe/internal/pipeline"
)

const languageCallbackPrefix = "lang:"

// Handler is the pipeline surface the dispatcher routes to.
type Handler interface {
	HandleAttachment(ctx context.Context, att intake.Attachment) error
	HandleStart(ctx context.Context, userID int64) error
	HandleHelp(ctx context.Context, userID int64) error
	HandleLanguagePrompt(ctx context.Context, userID int64) error
	HandleLanguageSelection(ctx context.Context, userID int64, code string) (pipeline.Message, error)
	HandleText(ctx context.Context, userID int64) error
}

// Dispatcher routes updates to the handler.
type Dispatcher struct {
	handler   Handler
	api       API
	transport *Transport
	logger    *slog.Logger
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(handler Handler, api API, transport *Transport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handler:   handler,
		api:       api,
		transport: transport,
		logger:    logging.NewComponentLogger(logger, "telegram"),
	}
}

// Dispatch handles one update synchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, update Update) {
	switch {
	case update.CallbackQuery != nil:
		d.dispatchCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		d.dispatchMessage(ctx, update.Message)
	default:
		d.logger.Debug("ignoring update", logging.Int64("update_id", update.UpdateID))
	}
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, msg *Message) {
	userID := msg.From.ID
	ctx = logging.WithUserID(ctx, userID)

	var err error
	if att, ok := AttachmentFrom(msg); ok {
		err = d.handler.HandleAttachment(ctx, att)
	} else {
		switch commandOf(msg.Text) {
		case "start":
			err = d.handler.HandleStart(ctx, userID)
		case "help":
			err = d.handler.HandleHelp(ctx, userID)
		case "lang":
			err = d.handler.HandleLanguagePrompt(ctx, userID)
		default:
			err = d.handler.HandleText(ctx, userID)
		}
	}
	d.report(ctx, err)
}

func (d *Dispatcher) dispatchCallback(ctx context.Context, cb *CallbackQuery) {
	userID := cb.From.ID
	ctx = logging.WithUserID(ctx, userID)

	if !strings.HasPrefix(cb.Data, languageCallbackPrefix) {
		if err := d.api.AnswerCallbackQuery(ctx, cb.ID, "", false); err != nil {
			d.report(ctx, err)
		}
		return
	}
	code := strings.TrimPrefix(cb.Data, languageCallbackPrefix)
	ack, err := d.handler.HandleLanguageSelection(ctx, userID, code)
	d.report(ctx, err)
	if ack.Key == "" {
		return
	}
	if err := d.api.AnswerCallbackQuery(ctx, cb.ID, d.transport.Render(ack), ack.Alert); err != nil {
		d.report(ctx, err)
	}
}

func (d *Dispatcher) report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	logger := logging.WithContext(ctx, d.logger)
	kind := pipeline.ErrorKind(err)
	switch kind {
	case "rejected", "corrupted_session", "render_failure":
		// Already logged in detail where it happened.
		logger.Info("update finished with handled failure",
			logging.String("error_kind", kind),
			logging.Error(err),
		)
	default:
		logging.ErrorWithContext(logger, "update handling failed", "update_failed",
			logging.String("error_kind", kind),
			logging.Error(err),
		)
	}
}

// AttachmentFrom maps a message carrying a file to an intake.Attachment.
// Photos resolve to their largest variant.
func AttachmentFrom(msg *Message) (intake.Attachment, bool) {
	if msg == nil || msg.From == nil {
		return intake.Attachment{}, false
	}
	att := intake.Attachment{UserID: msg.From.ID}
	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[0]
		for _, size := range msg.Photo[1:] {
			if size.Width*size.Height >= largest.Width*largest.Height {
				largest = size
			}
		}
		att.Kind = intake.KindPhoto
		att.MIME = "image/jpeg"
		att.FileID = largest.FileID
		att.Size = largest.FileSize
	case msg.Audio != nil:
		att.Kind = intake.KindAudio
		att.MIME = msg.Audio.MIMEType
		att.FileName = msg.Audio.FileName
		att.FileID = msg.Audio.FileID
		att.Size = msg.Audio.FileSize
	case msg.Document != nil:
		att.Kind = intake.KindDocument
		att.MIME = msg.Document.MIMEType
		att.FileName = msg.Document.FileName
		att.FileID = msg.Document.FileID
		att.Size = msg.Document.FileSize
	default:
		ref := firstRef(msg.Video, msg.Voice, msg.Sticker)
		if ref == nil {
			return intake.Attachment{}, false
		}
		att.Kind = intake.KindOther
		att.MIME = ref.MIMEType
		att.FileID = ref.FileID
		att.Size = ref.FileSize
	}
	return att, true
}

func firstRef(refs ...*FileRef) *FileRef {
	for _, ref := range refs {
		if ref != nil {
			return ref
		}
	}
	return nil
}

// commandOf returns the bot command in text without the slash or @botname,
// or "" when text is not a command.
func commandOf(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}
