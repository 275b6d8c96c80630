package pipeline

import (
	"context"
	"fmt"

	"stillframe/internal/locale"
	"stillframe/internal/logging"
)

// HandleStart greets the user. Users without a stored language are asked to
// pick one; everyone else gets the instructions.
func (s *Service) HandleStart(ctx context.Context, userID int64) error {
	ctx = logging.WithUserID(ctx, userID)
	lang, found, err := s.settings.Get(ctx, userID)
	if err != nil {
		s.emitGeneric(ctx, userID, s.defaultLang)
		return fmt.Errorf("load language: %w", err)
	}
	if !found {
		s.promptLanguage(ctx, userID, s.defaultLang)
		return nil
	}
	s.emit(ctx, userID, Message{Key: locale.KeyStartReady, Lang: lang})
	s.emit(ctx, userID, Message{Key: locale.KeyHelpText, Lang: lang})
	return nil
}

// HandleHelp sends the instructions.
func (s *Service) HandleHelp(ctx context.Context, userID int64) error {
	ctx = logging.WithUserID(ctx, userID)
	s.emit(ctx, userID, Message{Key: locale.KeyHelpText, Lang: s.language(ctx, userID)})
	return nil
}

// HandleLanguagePrompt offers the language picker.
func (s *Service) HandleLanguagePrompt(ctx context.Context, userID int64) error {
	ctx = logging.WithUserID(ctx, userID)
	s.emit(ctx, userID, Message{Key: locale.KeyChooseLangPrompt, Lang: s.language(ctx, userID), LanguageChoice: true})
	return nil
}

// HandleLanguageSelection stores the picked language and walks the user
// through the instructions in it. The returned Message acknowledges the pick
// on the picker itself.
func (s *Service) HandleLanguageSelection(ctx context.Context, userID int64, code string) (Message, error) {
	ctx = logging.WithUserID(ctx, userID)
	logger := logging.WithContext(ctx, s.logger)

	lang, ok := locale.Parse(code)
	if !ok {
		logger.Info("unknown language selected",
			logging.String("code", code),
			logging.String(logging.FieldEventType, "language_unknown"),
		)
		return Message{Key: locale.KeyUnknownLanguage, Lang: s.language(ctx, userID), Alert: true}, nil
	}
	if err := s.settings.Set(ctx, userID, lang); err != nil {
		current := s.language(ctx, userID)
		return Message{Key: locale.KeyErrorGeneric, Lang: current, Alert: true}, fmt.Errorf("store language: %w", err)
	}
	logger.Info("language saved",
		logging.String("language", lang.String()),
		logging.String(logging.FieldEventType, "language_saved"),
	)

	s.emit(ctx, userID, Message{Key: locale.KeyTutorialAfterLang, Lang: lang})
	s.emit(ctx, userID, Message{Key: locale.KeyStartReady, Lang: lang})
	s.emit(ctx, userID, Message{Key: locale.KeyHelpText, Lang: lang})
	return Message{Key: locale.KeyLanguageSaved, Lang: lang}, nil
}

// HandleText answers free text that is not a command.
func (s *Service) HandleText(ctx context.Context, userID int64) error {
	ctx = logging.WithUserID(ctx, userID)
	lang, found, err := s.settings.Get(ctx, userID)
	if err != nil {
		s.emitGeneric(ctx, userID, s.defaultLang)
		return fmt.Errorf("load language: %w", err)
	}
	if !found {
		s.promptLanguage(ctx, userID, s.defaultLang)
		return nil
	}
	s.emit(ctx, userID, Message{
		Key:    locale.KeyHelpText,
		Lang:   lang,
		Append: []locale.Key{locale.KeyChangeLangHint},
	})
	return nil
}

func (s *Service) promptLanguage(ctx context.Context, userID int64, lang locale.Lang) {
	s.emit(ctx, userID, Message{Key: locale.KeyStartChooseLang, AllLanguages: true})
	s.emit(ctx, userID, Message{Key: locale.KeyChooseLangPrompt, Lang: lang, LanguageChoice: true})
}
