// Package logging assembles structured slog loggers and formatting helpers used
// across stillframe services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so handlers can automatically tag
// log lines with the chat user and the correlation ID of the update being
// processed. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
