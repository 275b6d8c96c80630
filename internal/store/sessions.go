package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Session is the set of inputs a user has uploaded but not yet rendered.
// Empty paths mean the slot is unset.
type Session struct {
	UserID    int64
	AudioPath string
	ImagePath string
	UpdatedAt time.Time
}

// HasAudio reports whether the audio slot is filled.
func (s Session) HasAudio() bool { return s.AudioPath != "" }

// HasImage reports whether the image slot is filled.
func (s Session) HasImage() bool { return s.ImagePath != "" }

// Empty reports whether neither slot is filled.
func (s Session) Empty() bool { return !s.HasAudio() && !s.HasImage() }

// Paths returns the filled slot paths.
func (s Session) Paths() []string {
	var out []string
	if s.HasAudio() {
		out = append(out, s.AudioPath)
	}
	if s.HasImage() {
		out = append(out, s.ImagePath)
	}
	return out
}

// Patch is a partial session update. Nil fields keep their stored value.
type Patch struct {
	AudioPath *string
	ImagePath *string
}

// SessionStore persists pending sessions keyed by user id.
type SessionStore struct {
	store *Store
}

const sessionColumns = "user_id, audio_path, image_path, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		session   Session
		audio     sql.NullString
		image     sql.NullString
		updatedAt string
	)
	if err := row.Scan(&session.UserID, &audio, &image, &updatedAt); err != nil {
		return Session{}, err
	}
	session.AudioPath = audio.String
	session.ImagePath = image.String
	session.UpdatedAt = parseTimestamp(updatedAt)
	return session, nil
}

// Get returns the session for userID, or a zero Session carrying only the
// user id when none is stored.
func (s *SessionStore) Get(ctx context.Context, userID int64) (Session, error) {
	ctx = ensureContext(ctx)
	var session Session
	err := retryTransient(ctx, "session get", func() error {
		row := s.store.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE user_id = ?", userID)
		got, err := scanSession(row)
		if errors.Is(err, sql.ErrNoRows) {
			session = Session{UserID: userID}
			return nil
		}
		if err != nil {
			return err
		}
		session = got
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Upsert merges patch into the stored session for userID, creating it when
// absent, and returns the merged result.
func (s *SessionStore) Upsert(ctx context.Context, userID int64, patch Patch) (Session, error) {
	ctx = ensureContext(ctx)
	var session Session
	err := retryTransient(ctx, "session upsert", func() error {
		row := s.store.db.QueryRowContext(ctx, `
			INSERT INTO sessions (user_id, audio_path, image_path, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				audio_path = COALESCE(excluded.audio_path, sessions.audio_path),
				image_path = COALESCE(excluded.image_path, sessions.image_path),
				updated_at = excluded.updated_at
			RETURNING `+sessionColumns,
			userID, nullable(patch.AudioPath), nullable(patch.ImagePath), timestamp())
		got, err := scanSession(row)
		if err != nil {
			return err
		}
		session = got
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Clear removes the session for userID. Clearing an absent session is a no-op.
func (s *SessionStore) Clear(ctx context.Context, userID int64) error {
	return s.store.exec(ctx, "session clear", "DELETE FROM sessions WHERE user_id = ?", userID)
}

// List returns every stored session ordered by user id.
func (s *SessionStore) List(ctx context.Context) ([]Session, error) {
	ctx = ensureContext(ctx)
	var out []Session
	err := retryTransient(ctx, "session list", func() error {
		out = out[:0]
		rows, err := s.store.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM sessions ORDER BY user_id")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			session, err := scanSession(rows)
			if err != nil {
				return err
			}
			out = append(out, session)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func nullable(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
