package testsupport

import (
	"context"
	"testing"

	"stillframe/internal/config"
	"stillframe/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedSession stores a session with the given paths, failing the test on error.
func SeedSession(t testing.TB, st *store.Store, userID int64, audioPath, imagePath string) store.Session {
	t.Helper()

	patch := store.Patch{}
	if audioPath != "" {
		patch.AudioPath = &audioPath
	}
	if imagePath != "" {
		patch.ImagePath = &imagePath
	}
	session, err := st.Sessions().Upsert(context.Background(), userID, patch)
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session
}
