package pipeline

import (
	"context"
	"fmt"

	"stillframe/internal/logging"
	"stillframe/internal/session"
	"stillframe/internal/store"
	"stillframe/internal/workdir"
)

// RecoveryReport summarizes a startup recovery pass.
type RecoveryReport struct {
	Sessions int
	// Interrupted counts sessions that were ready when the process stopped.
	Interrupted int
	// Broken counts sessions whose files had disappeared.
	Broken int
	Swept   int
}

// Recover reconciles stored sessions with the work directory. It must run
// before the transport starts delivering events.
func (s *Service) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list sessions: %w", err)
	}
	report.Sessions = len(sessions)

	keep := make(map[string]struct{})
	for _, sess := range sessions {
		kept, outcome, err := s.recoverSession(ctx, sess)
		if err != nil {
			return report, err
		}
		switch outcome {
		case recoveryInterrupted:
			report.Interrupted++
		case recoveryBroken:
			report.Broken++
		}
		for _, path := range kept {
			keep[path] = struct{}{}
		}
	}

	if s.orphanMaxAge > 0 {
		swept := s.work.SweepOrphans(ctx, s.orphanMaxAge, keep, s.logger)
		report.Swept = len(swept.Removed)
	}

	s.logger.Info("startup recovery complete",
		logging.Int("sessions", report.Sessions),
		logging.Int("interrupted", report.Interrupted),
		logging.Int("broken", report.Broken),
		logging.Int("swept", report.Swept),
		logging.String(logging.FieldEventType, "recovery_complete"),
	)
	return report, nil
}

type recoveryOutcome int

const (
	recoveryKept recoveryOutcome = iota
	recoveryInterrupted
	recoveryBroken
)

func (s *Service) recoverSession(ctx context.Context, sess store.Session) ([]string, recoveryOutcome, error) {
	unlock := s.locks.Lock(sess.UserID)
	defer unlock()

	ctx = logging.WithUserID(ctx, sess.UserID)
	logger := logging.WithContext(ctx, s.logger)

	if session.StateOf(sess) == session.StateReady {
		// The render that owned this session died with the process.
		s.removeFiles(logger, sess.Paths()...)
		if err := s.sessions.Clear(ctx, sess.UserID); err != nil {
			return nil, recoveryKept, fmt.Errorf("reset interrupted session: %w", err)
		}
		logging.WarnWithContext(logger, "reset session interrupted mid-render", "session_interrupted",
			logging.String(logging.FieldImpact, "user must upload both files again"),
			logging.String(logging.FieldErrorHint, "check previous run log for a crash or kill"),
		)
		s.emitGeneric(ctx, sess.UserID, s.language(ctx, sess.UserID))
		return nil, recoveryInterrupted, nil
	}

	for _, path := range sess.Paths() {
		if workdir.Exists(path) {
			continue
		}
		s.removeFiles(logger, sess.Paths()...)
		if err := s.sessions.Clear(ctx, sess.UserID); err != nil {
			return nil, recoveryKept, fmt.Errorf("clear broken session: %w", err)
		}
		logging.WarnWithContext(logger, "cleared session with missing upload", "session_corrupted",
			logging.String("missing", path),
			logging.String(logging.FieldImpact, "user must upload again"),
		)
		return nil, recoveryBroken, nil
	}
	return sess.Paths(), recoveryKept, nil
}
