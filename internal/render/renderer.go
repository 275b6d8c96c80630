package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"stillframe/internal/config"
	"stillframe/internal/logging"
	"stillframe/internal/media/ffprobe"
)

var commandContext = exec.CommandContext

// FilterGraph fits the image inside 1920x1080, squares the pixels, and pads
// the frame to full HD centred on black.
const FilterGraph = "scale='if(gt(a,16/9),1920,-2)':'if(gt(a,16/9),-2,1080)'," +
	"setsar=1," +
	"pad=1920:1080:(1920-iw)/2:(1080-ih)/2:black"

// stderr is read well past the diagnostic limit so multibyte text can still
// be cut on a character boundary.
const stderrCaptureBytes = DiagnosticLimit * 4

// OutputNamer hands out collision-free output paths.
type OutputNamer interface {
	OutputPath() string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(ffmpeg) != "" {
			r.ffmpeg = ffmpeg
		}
		if strings.TrimSpace(ffprobe) != "" {
			r.ffprobe = ffprobe
		}
	}
}

// WithTimeout sets the base timeout and the extra budget per audio minute.
func WithTimeout(base, perAudioMinute time.Duration) Option {
	return func(r *Renderer) {
		if base > 0 {
			r.baseTimeout = base
		}
		if perAudioMinute >= 0 {
			r.perAudioMinute = perAudioMinute
		}
	}
}

// WithAudioBitrate sets the AAC bitrate, e.g. "192k".
func WithAudioBitrate(bitrate string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(bitrate) != "" {
			r.audioBitrate = bitrate
		}
	}
}

// Renderer runs the encoder.
type Renderer struct {
	outputs        OutputNamer
	ffmpeg         string
	ffprobe        string
	audioBitrate   string
	baseTimeout    time.Duration
	perAudioMinute time.Duration
	logger         *slog.Logger
	probe          func(ctx context.Context, path string) (time.Duration, error)
}

// New constructs a Renderer writing outputs to names from outputs.
func New(outputs OutputNamer, opts ...Option) *Renderer {
	r := &Renderer{
		outputs:        outputs,
		ffmpeg:         "ffmpeg",
		ffprobe:        "ffprobe",
		audioBitrate:   "192k",
		baseTimeout:    5 * time.Minute,
		perAudioMinute: 2 * time.Minute,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.probe = r.probeAudio
	return r
}

// NewFromConfig builds a Renderer from the render section of cfg.
func NewFromConfig(cfg *config.Config, outputs OutputNamer, logger *slog.Logger) *Renderer {
	return New(outputs,
		WithLogger(logging.NewComponentLogger(logger, "render")),
		WithBinaries(cfg.Render.FFmpegBinary, cfg.Render.FFprobeBinary),
		WithTimeout(cfg.RenderTimeout(), cfg.RenderTimeoutPerAudioMinute()),
		WithAudioBitrate(cfg.Render.AudioBitrate),
	)
}

// Args returns the ffmpeg argument vector for one job.
func (r *Renderer) Args(job Job, outputPath string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-loop", "1", "-i", job.ImagePath,
		"-i", job.AudioPath,
		"-tune", "stillimage",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		"-vf", FilterGraph,
		"-c:a", "aac",
		"-b:a", r.audioBitrate,
		"-shortest",
		outputPath,
	}
}

// Timeout returns the encode budget for a track of the given length.
func (r *Renderer) Timeout(audio time.Duration) time.Duration {
	if audio <= 0 {
		return r.baseTimeout
	}
	extra := time.Duration(audio.Minutes() * float64(r.perAudioMinute))
	return r.baseTimeout + extra
}

// Render encodes job into a fresh output file. One attempt is made; failures
// are not retried.
func (r *Renderer) Render(ctx context.Context, job Job) Result {
	logger := logging.WithContext(ctx, r.logger)
	if strings.TrimSpace(job.ImagePath) == "" || strings.TrimSpace(job.AudioPath) == "" {
		return Result{Failure: &Failure{Err: errors.New("image and audio paths are required")}}
	}

	audioDuration, err := r.probe(ctx, job.AudioPath)
	if err != nil {
		logger.Debug("audio probe failed; using base timeout", logging.Error(err))
		audioDuration = 0
	}
	timeout := r.Timeout(audioDuration)
	outputPath := r.outputs.OutputPath()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stderr := newTailBuffer(stderrCaptureBytes)
	cmd := commandContext(runCtx, r.ffmpeg, r.Args(job, outputPath)...) //nolint:gosec
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	logger.Info("render started",
		logging.String("output", outputPath),
		logging.Duration("audio_duration", audioDuration),
		logging.Duration("timeout", timeout),
		logging.String(logging.FieldEventType, "render_started"),
	)

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)
	result := Result{Elapsed: elapsed, AudioDuration: audioDuration}

	if runErr != nil {
		failure := &Failure{
			Diagnostic: truncateDiagnostic(strings.TrimSpace(stderr.String()), DiagnosticLimit),
			ExitCode:   -1,
			Err:        runErr,
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			failure.TimedOut = true
			failure.Diagnostic = timeoutDiagnostic(timeout, failure.Diagnostic)
		}
		return r.fail(logger, result, outputPath, failure)
	}

	info, err := os.Stat(outputPath)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		if err == nil {
			err = errors.New("encoder produced an empty output")
		}
		return r.fail(logger, result, outputPath, &Failure{
			Diagnostic: truncateDiagnostic(strings.TrimSpace(stderr.String()), DiagnosticLimit),
			Err:        fmt.Errorf("inspect output: %w", err),
		})
	}

	result.OutputPath = outputPath
	result.SizeBytes = info.Size()
	logger.Info("render finished",
		logging.String("output", outputPath),
		logging.Int64("size_bytes", info.Size()),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "render_finished"),
	)
	return result
}

func (r *Renderer) fail(logger *slog.Logger, result Result, outputPath string, failure *Failure) Result {
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove partial render output",
			logging.String("output", outputPath),
			logging.Error(err),
			logging.String(logging.FieldEventType, "render_cleanup_failed"),
			logging.String(logging.FieldImpact, "partial file left in work directory until the orphan sweep"),
		)
	}
	logging.ErrorWithContext(logger, "render failed", "render_failed",
		logging.Bool("timed_out", failure.TimedOut),
		logging.Int("exit_code", failure.ExitCode),
		logging.Duration("elapsed", result.Elapsed),
		logging.String("diagnostic", failure.Diagnostic),
		logging.Error(failure),
		logging.String(logging.FieldErrorHint, "run the logged inputs through ffmpeg by hand to reproduce"),
	)
	result.OutputPath = ""
	result.SizeBytes = 0
	result.Failure = failure
	return result
}

func (r *Renderer) probeAudio(ctx context.Context, path string) (time.Duration, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	info, err := ffprobe.Inspect(probeCtx, r.ffprobe, path)
	if err != nil {
		return 0, err
	}
	if info.AudioStreamCount() == 0 {
		return 0, errors.New("no audio stream")
	}
	return info.Duration(), nil
}
