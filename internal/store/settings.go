package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stillframe/internal/locale"
)

// SettingsStore persists each user's interface language.
type SettingsStore struct {
	store *Store
}

// Get returns the stored language for userID. found is false when the user
// never chose one.
func (s *SettingsStore) Get(ctx context.Context, userID int64) (locale.Lang, bool, error) {
	ctx = ensureContext(ctx)
	var (
		value string
		found bool
	)
	err := retryTransient(ctx, "settings get", func() error {
		found = false
		row := s.store.db.QueryRowContext(ctx, "SELECT language FROM settings WHERE user_id = ?", userID)
		if err := row.Scan(&value); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return "", false, err
	}
	lang, ok := locale.Parse(value)
	if !ok {
		// A row we cannot interpret behaves as no choice at all.
		return "", false, nil
	}
	return lang, true, nil
}

// Set stores lang for userID, replacing any previous choice.
func (s *SettingsStore) Set(ctx context.Context, userID int64, lang locale.Lang) error {
	if !lang.Valid() {
		return fmt.Errorf("unsupported language %q", lang)
	}
	return s.store.exec(ctx, "settings set", `
		INSERT INTO settings (user_id, language, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			language = excluded.language,
			updated_at = excluded.updated_at`,
		userID, lang.String(), timestamp())
}

// Setting is one stored language choice.
type Setting struct {
	UserID    int64
	Language  locale.Lang
	UpdatedAt time.Time
}

// List returns every stored setting ordered by user id.
func (s *SettingsStore) List(ctx context.Context) ([]Setting, error) {
	ctx = ensureContext(ctx)
	var out []Setting
	err := retryTransient(ctx, "settings list", func() error {
		out = out[:0]
		rows, err := s.store.db.QueryContext(ctx, "SELECT user_id, language, updated_at FROM settings ORDER BY user_id")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				item      Setting
				lang      string
				updatedAt string
			)
			if err := rows.Scan(&item.UserID, &lang, &updatedAt); err != nil {
				return err
			}
			item.Language = locale.Lang(lang)
			item.UpdatedAt = parseTimestamp(updatedAt)
			out = append(out, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
