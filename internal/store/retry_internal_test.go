package store

import (
	"context"
	"errors"
	"testing"
)

type codedError struct {
	code int
}

func (e codedError) Error() string { return "sqlite error" }

func (e codedError) Code() int { return e.code }

func TestRetryTransientRecoversOnSecondAttempt(t *testing.T) {
	attempts := 0
	err := retryTransient(context.Background(), "settings set", func() error {
		attempts++
		if attempts == 1 {
			return codedError{code: sqliteBusyCode}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryTransientFaultsAfterSecondFailure(t *testing.T) {
	attempts := 0
	err := retryTransient(context.Background(), "session upsert", func() error {
		attempts++
		// Extended result code SQLITE_IOERR_WRITE still maps to the I/O class.
		return codedError{code: sqliteIOErrCode | 3<<8}
	})
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("expected *Fault, got %T (%v)", err, err)
	}
	if f.Op != "session upsert" || f.ErrorKind() != "storage" {
		t.Fatalf("unexpected fault %+v", f)
	}
	var coded codedError
	if !errors.As(err, &coded) || coded.code&0xff != sqliteIOErrCode {
		t.Fatalf("fault should wrap the driver error, got %v", err)
	}
}

func TestRetryTransientSkipsPermanentErrors(t *testing.T) {
	attempts := 0
	err := retryTransient(context.Background(), "session get", func() error {
		attempts++
		return errors.New("no such table: sessions")
	})
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("expected *Fault, got %v", err)
	}
}

func TestRetryTransientStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := retryTransient(ctx, "session clear", func() error {
		attempts++
		cancel()
		return errors.New("database is locked")
	})
	if attempts != 1 {
		t.Fatalf("expected no retry after cancel, got %d attempts", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy code", codedError{code: sqliteBusyCode}, true},
		{"locked code", codedError{code: sqliteLockedCode}, true},
		{"constraint code", codedError{code: 19}, false},
		{"busy message", errors.New("SQLITE_BUSY: database busy"), true},
		{"io message", errors.New("disk I/O error"), true},
		{"plain", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Fatalf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
