package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gofrs/flock"

	"stillframe/internal/config"
	"stillframe/internal/logging"
	"stillframe/internal/pipeline"
)

// ErrAlreadyRunning is returned when another process holds the daemon lock.
var ErrAlreadyRunning = errors.New("another stillframe daemon instance is already running")

// Recoverer reconciles persisted sessions before updates are accepted.
type Recoverer interface {
	Recover(ctx context.Context) (pipeline.RecoveryReport, error)
}

// Runner consumes inbound updates until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Daemon enforces single-instance execution around recovery and polling.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	recoverer Recoverer
	runner    Runner

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, recoverer Recoverer, runner Runner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || recoverer == nil || runner == nil {
		return nil, errors.New("daemon requires config, recoverer, and runner")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		recoverer: recoverer,
		runner:    runner,
		lockPath:  lockPath,
		pidPath:   cfg.PIDPath(),
		lock:      flock.New(lockPath),
	}, nil
}

// Run acquires the lock, recovers sessions, and polls until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
				logging.String("lock", d.lockPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "next start may need the lock file removed"),
			)
		}
	}()

	// Only the lock holder owns the PID file.
	if err := writePIDFile(d.pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(d.pidPath)

	if _, err := d.recoverer.Recover(ctx); err != nil {
		return fmt.Errorf("recover sessions: %w", err)
	}

	d.logger.Info("stillframe daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	err = d.runner.Run(ctx)
	d.logger.Info("stillframe daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return err
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}

// LockHeld reports whether some process currently holds the daemon lock at
// path. It briefly takes the lock itself when it is free.
func LockHeld(path string) (bool, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	if err := lock.Unlock(); err != nil {
		return false, fmt.Errorf("release probe lock: %w", err)
	}
	return false, nil
}
