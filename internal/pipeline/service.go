package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stillframe/internal/intake"
	"stillframe/internal/locale"
	"stillframe/internal/logging"
	"stillframe/internal/render"
	"stillframe/internal/session"
	"stillframe/internal/store"
	"stillframe/internal/userlock"
	"stillframe/internal/workdir"
)

// SettingsStore is the language preference store.
type SettingsStore interface {
	Get(ctx context.Context, userID int64) (locale.Lang, bool, error)
	Set(ctx context.Context, userID int64, lang locale.Lang) error
}

// SessionStore is the pending session store.
type SessionStore interface {
	session.Store
	Clear(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]store.Session, error)
}

// Renderer produces videos from a ready session.
type Renderer interface {
	Render(ctx context.Context, job render.Job) render.Result
}

// Options wires a Service.
type Options struct {
	Settings  SettingsStore
	Sessions  SessionStore
	Renderer  Renderer
	Transport Transport
	WorkDir   *workdir.Dir
	// MaxOutputBytes is the size above which a warning precedes delivery.
	MaxOutputBytes  int64
	DefaultLanguage locale.Lang
	OrphanMaxAge    time.Duration
	Logger          *slog.Logger
}

// Service handles inbound chat events.
type Service struct {
	settings       SettingsStore
	sessions       SessionStore
	machine        *session.Machine
	renderer       Renderer
	transport      Transport
	work           *workdir.Dir
	locks          *userlock.Locker
	maxOutputBytes int64
	defaultLang    locale.Lang
	orphanMaxAge   time.Duration
	logger         *slog.Logger
}

// NewService validates opts and returns a ready Service.
func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Settings == nil:
		return nil, errors.New("pipeline: settings store is required")
	case opts.Sessions == nil:
		return nil, errors.New("pipeline: session store is required")
	case opts.Renderer == nil:
		return nil, errors.New("pipeline: renderer is required")
	case opts.Transport == nil:
		return nil, errors.New("pipeline: transport is required")
	case opts.WorkDir == nil:
		return nil, errors.New("pipeline: work directory is required")
	}
	lang := opts.DefaultLanguage
	if !lang.Valid() {
		lang = locale.RU
	}
	return &Service{
		settings:       opts.Settings,
		sessions:       opts.Sessions,
		machine:        session.NewMachine(opts.Sessions),
		renderer:       opts.Renderer,
		transport:      opts.Transport,
		work:           opts.WorkDir,
		locks:          userlock.New(),
		maxOutputBytes: opts.MaxOutputBytes,
		defaultLang:    lang,
		orphanMaxAge:   opts.OrphanMaxAge,
		logger:         logging.NewComponentLogger(opts.Logger, "pipeline"),
	}, nil
}

// HandleAttachment processes one inbound file.
func (s *Service) HandleAttachment(ctx context.Context, att intake.Attachment) error {
	userID := att.UserID
	ctx = logging.WithUserID(ctx, userID)
	logger := logging.WithContext(ctx, s.logger)
	lang := s.language(ctx, userID)

	classification := intake.Classify(att)
	logger.Debug("attachment classified",
		logging.String("kind", att.Kind.String()),
		logging.String("mime", att.MIME),
		logging.String("file_name", att.FileName),
		logging.String("class", classification.Class.String()),
	)

	if !classification.Accepted() {
		unlock := s.locks.Lock(userID)
		tr, err := s.machine.Apply(ctx, userID, session.Input{Class: classification.Class, Reason: classification.Reason})
		unlock()
		if err != nil {
			s.emitGeneric(ctx, userID, lang)
			return err
		}
		logger.Info("attachment rejected",
			logging.String("reason", string(classification.Reason)),
			logging.String("state", tr.To.String()),
			logging.String(logging.FieldEventType, "attachment_rejected"),
		)
		s.emit(ctx, userID, Message{Key: tr.Prompt, Lang: lang})
		return classification.Err(att.Kind)
	}

	// Download outside the lock so a slow transfer does not stall the user's
	// other events. The destination is unique, so nothing else can see it yet.
	dest := s.work.UploadPath(userID, classification.Ext)
	if err := s.transport.Fetch(ctx, att, dest); err != nil {
		s.removeFiles(logger, dest)
		s.emitGeneric(ctx, userID, lang)
		return fmt.Errorf("fetch %s attachment: %w", classification.Class, err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	tr, err := s.machine.Apply(ctx, userID, session.Input{Class: classification.Class, Path: dest})
	if err != nil {
		s.removeFiles(logger, dest)
		s.emitGeneric(ctx, userID, lang)
		return err
	}
	if tr.Superseded != "" {
		s.removeFiles(logger, tr.Superseded)
		logger.Info("replaced pending upload",
			logging.String("class", classification.Class.String()),
			logging.String("superseded", tr.Superseded),
			logging.String(logging.FieldEventType, "upload_superseded"),
		)
	}
	logger.Info("session advanced",
		logging.String("from", tr.From.String()),
		logging.String("to", tr.To.String()),
		logging.String(logging.FieldEventType, "session_transition"),
	)

	if !tr.Ready() {
		s.emit(ctx, userID, Message{Key: tr.Prompt, Lang: lang})
		return nil
	}
	return s.handleReady(ctx, userID, tr.Session, lang)
}

// handleReady renders and delivers a ready session. The caller holds the
// user's lock. The session is cleared and every file it references is removed
// on every path out of this function.
func (s *Service) handleReady(ctx context.Context, userID int64, sess store.Session, lang locale.Lang) error {
	logger := logging.WithContext(ctx, s.logger)
	var outputPath string
	defer func() {
		s.cleanup(ctx, userID, sess.AudioPath, sess.ImagePath, outputPath)
	}()

	if !workdir.Exists(sess.AudioPath) || !workdir.Exists(sess.ImagePath) {
		logging.WarnWithContext(logger, "ready session references missing files", "session_corrupted",
			logging.String("audio", sess.AudioPath),
			logging.String("image", sess.ImagePath),
			logging.String(logging.FieldErrorHint, "check whether something else prunes work_dir"),
			logging.String(logging.FieldImpact, "session reset; user must upload again"),
		)
		s.emitGeneric(ctx, userID, lang)
		return fmt.Errorf("user %d: %w", userID, ErrCorruptedSession)
	}

	s.emit(ctx, userID, Message{Key: locale.KeyBuildingVideo, Lang: lang})

	result := s.renderer.Render(ctx, render.Job{ImagePath: sess.ImagePath, AudioPath: sess.AudioPath})
	if !result.OK() {
		s.emitGeneric(ctx, userID, lang)
		if result.Failure != nil {
			return result.Failure
		}
		return &render.Failure{Err: errors.New("renderer returned no output")}
	}
	outputPath = result.OutputPath

	if s.maxOutputBytes > 0 && result.SizeBytes > s.maxOutputBytes {
		logger.Info("output exceeds size threshold; sending anyway",
			logging.Int64("size_bytes", result.SizeBytes),
			logging.Int64("threshold_bytes", s.maxOutputBytes),
			logging.String(logging.FieldEventType, "output_oversize"),
		)
		s.emit(ctx, userID, Message{
			Key:  locale.KeySizeWarning,
			Lang: lang,
			Vars: map[string]string{"size_mb": formatMB(result.SizeBytes)},
		})
	}

	if err := s.transport.DeliverVideo(ctx, userID, outputPath, Message{Key: locale.KeyDone, Lang: lang}); err != nil {
		deliveryErr := &DeliveryError{Err: err}
		logging.ErrorWithContext(logger, "video delivery failed", "delivery_failed",
			logging.Error(err),
			logging.Int64("size_bytes", result.SizeBytes),
			logging.String(logging.FieldErrorHint, "check Bot API upload limits and connectivity"),
		)
		s.emitGeneric(ctx, userID, lang)
		return deliveryErr
	}

	logger.Info("video delivered",
		logging.Int64("size_bytes", result.SizeBytes),
		logging.Duration("render_elapsed", result.Elapsed),
		logging.String(logging.FieldEventType, "video_delivered"),
	)
	return nil
}

// cleanup runs even when ctx is already cancelled so a shutdown mid-render
// still releases the session.
func (s *Service) cleanup(ctx context.Context, userID int64, paths ...string) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, s.logger)
	s.removeFiles(logger, paths...)
	if err := s.sessions.Clear(ctx, userID); err != nil {
		logging.ErrorWithContext(logger, "failed to clear session after render", "session_clear_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "startup recovery resets sessions left in ready state"),
		)
	}
}

func (s *Service) removeFiles(logger *slog.Logger, paths ...string) {
	if err := workdir.Remove(paths...); err != nil {
		logger.Debug("best-effort file removal failed", logging.Error(err))
	}
}

// language resolves the user's language, falling back to the default when
// none is stored or the store is unavailable.
func (s *Service) language(ctx context.Context, userID int64) locale.Lang {
	lang, found, err := s.settings.Get(ctx, userID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "language lookup failed", "settings_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "replying in the default language"),
		)
		return s.defaultLang
	}
	if !found {
		return s.defaultLang
	}
	return lang
}

func (s *Service) emit(ctx context.Context, userID int64, msg Message) {
	if err := s.transport.Emit(ctx, userID, msg); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "message delivery failed", "emit_failed",
			logging.String("key", string(msg.Key)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user did not receive a status message"),
		)
	}
}

func (s *Service) emitGeneric(ctx context.Context, userID int64, lang locale.Lang) {
	s.emit(ctx, userID, Message{Key: locale.KeyErrorGeneric, Lang: lang})
}

func formatMB(size int64) string {
	return fmt.Sprintf("%.1f", float64(size)/(1024*1024))
}
