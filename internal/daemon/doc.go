// Package daemon coordinates the long-running stillframe process.
//
// It owns the flock-based single-instance lock, runs startup recovery
// against the session store before any update is accepted, and then hands
// control to the update poller until the context is cancelled.
//
// Keep orchestration logic here: chat handling lives in internal/pipeline and
// Bot API plumbing in internal/telegram.
package daemon
