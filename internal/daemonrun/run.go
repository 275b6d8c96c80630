package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"stillframe/internal/config"
	"stillframe/internal/daemon"
	"stillframe/internal/deps"
	"stillframe/internal/locale"
	"stillframe/internal/logging"
	"stillframe/internal/pipeline"
	"stillframe/internal/preflight"
	"stillframe/internal/render"
	"stillframe/internal/store"
	"stillframe/internal/telegram"
	"stillframe/internal/workdir"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the stillframe daemon runtime loop and blocks until SIGINT or
// SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logger, logPath, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update stillframe.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "stillframe-*.log", Exclude: []string{logPath}},
	)

	if err := checkReadiness(signalCtx, cfg, logger); err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}
	defer st.Close()

	work, err := workdir.New(cfg.Paths.WorkDir)
	if err != nil {
		return err
	}

	client := telegram.NewConfiguredClient(cfg)
	transport := telegram.NewTransport(client, locale.Default())
	service, err := pipeline.NewService(pipeline.Options{
		Settings:        st.Settings(),
		Sessions:        st.Sessions(),
		Renderer:        render.NewFromConfig(cfg, work, logger),
		Transport:       transport,
		WorkDir:         work,
		MaxOutputBytes:  cfg.MaxOutputBytes(),
		DefaultLanguage: cfg.DefaultLanguage(),
		OrphanMaxAge:    cfg.OrphanMaxAge(),
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	dispatcher := telegram.NewDispatcher(service, client, transport, logger)
	poller := telegram.NewPoller(client, dispatcher,
		time.Duration(cfg.Telegram.PollTimeoutSeconds)*time.Second,
		cfg.Telegram.MaxConcurrentUpdates,
		logger,
	)

	d, err := daemon.New(cfg, service, poller, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Run(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return err
		}
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state database and work directory"),
		)
		return err
	}
	logger.Info("stillframe daemon shutting down")
	return nil
}

// checkReadiness runs local preflight checks and refuses to start when a
// directory or a required binary is unusable.
func checkReadiness(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var problems []string
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		problems = append(problems, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	statuses := preflight.CheckSystemDeps(ctx, cfg)
	logDependencySnapshot(logger, statuses)
	for _, status := range deps.Missing(statuses) {
		problems = append(problems, fmt.Sprintf("%s: %s", status.Name, status.Detail))
	}
	if len(problems) == 0 {
		return nil
	}
	logging.ErrorWithContext(logger, "preflight failed", "preflight_failed",
		logging.Any("problems", problems),
		logging.String(logging.FieldErrorHint, "run stillframe status for details"),
	)
	return fmt.Errorf("preflight failed: %s", strings.Join(problems, "; "))
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "stillframe.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logDependencySnapshot(logger *slog.Logger, statuses []deps.Status) {
	if logger == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_command", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
