package render

import (
	"fmt"
	"time"
)

// Job is one render request.
type Job struct {
	ImagePath string
	AudioPath string
}

// Result is the outcome of a render. Exactly one of OutputPath and Failure is set.
type Result struct {
	OutputPath string
	SizeBytes  int64
	// Elapsed is the wall time spent in the encoder.
	Elapsed time.Duration
	// AudioDuration is the probed track length, zero when probing failed.
	AudioDuration time.Duration
	Failure       *Failure
}

// OK reports whether the render produced an output file.
func (r Result) OK() bool {
	return r.Failure == nil && r.OutputPath != ""
}

// Failure describes why a render produced no output.
type Failure struct {
	// Diagnostic is the tail of the encoder's stderr, capped at DiagnosticLimit characters.
	Diagnostic string
	ExitCode   int
	TimedOut   bool
	Err        error
}

func (f *Failure) Error() string {
	switch {
	case f.TimedOut:
		return "render timed out"
	case f.Err != nil:
		return fmt.Sprintf("render failed: %v", f.Err)
	default:
		return fmt.Sprintf("render failed with exit code %d", f.ExitCode)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ErrorKind classifies the failure for callers that map errors to user messages.
func (f *Failure) ErrorKind() string {
	return "render_failure"
}
