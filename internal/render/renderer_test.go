package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fixedNamer struct{ path string }

func (n fixedNamer) OutputPath() string { return n.path }

func newTestRenderer(t *testing.T, opts ...Option) (*Renderer, string) {
	t.Helper()
	output := filepath.Join(t.TempDir(), "out_test.mp4")
	r := New(fixedNamer{path: output}, opts...)
	r.probe = func(context.Context, string) (time.Duration, error) {
		return 0, errors.New("probe disabled")
	}
	return r, output
}

func setHelperCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestArgsAreFixedVector(t *testing.T) {
	r := New(fixedNamer{})
	got := r.Args(Job{ImagePath: "/w/cover $(rm -rf).jpg", AudioPath: "/w/a'b.mp3"}, "/w/out.mp4")
	want := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-loop", "1", "-i", "/w/cover $(rm -rf).jpg",
		"-i", "/w/a'b.mp3",
		"-tune", "stillimage", "-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		"-vf", "scale='if(gt(a,16/9),1920,-2)':'if(gt(a,16/9),-2,1080)',setsar=1,pad=1920:1080:(1920-iw)/2:(1080-ih)/2:black",
		"-c:a", "aac", "-b:a", "192k", "-shortest", "/w/out.mp4",
	}
	if strings.Join(got, "\x00") != strings.Join(want, "\x00") {
		t.Fatalf("unexpected args:\n got %q\nwant %q", got, want)
	}
}

func TestTimeoutScalesWithAudio(t *testing.T) {
	r := New(fixedNamer{}, WithTimeout(5*time.Minute, 2*time.Minute))
	if got := r.Timeout(0); got != 5*time.Minute {
		t.Fatalf("expected base timeout without audio, got %s", got)
	}
	if got := r.Timeout(3 * time.Minute); got != 11*time.Minute {
		t.Fatalf("expected 11m for 3m of audio, got %s", got)
	}
	if got := r.Timeout(90 * time.Second); got != 8*time.Minute {
		t.Fatalf("expected 8m for 90s of audio, got %s", got)
	}
}

func TestRenderSuccess(t *testing.T) {
	var captured []string
	setHelperCommand(t, "success", &captured)
	r, output := newTestRenderer(t, WithBinaries("/opt/ffmpeg", ""))

	result := r.Render(context.Background(), Job{ImagePath: "/w/i.jpg", AudioPath: "/w/a.mp3"})
	if !result.OK() {
		t.Fatalf("expected success, got failure %v", result.Failure)
	}
	if result.OutputPath != output || result.SizeBytes != 2048 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(captured) == 0 || captured[0] != "/opt/ffmpeg" || captured[len(captured)-1] != output {
		t.Fatalf("unexpected command %v", captured)
	}
}

func TestRenderFailureRemovesPartialOutput(t *testing.T) {
	setHelperCommand(t, "failure", nil)
	r, output := newTestRenderer(t)

	result := r.Render(context.Background(), Job{ImagePath: "/w/i.jpg", AudioPath: "/w/a.mp3"})
	if result.OK() || result.Failure == nil {
		t.Fatal("expected failure")
	}
	if result.OutputPath != "" {
		t.Fatalf("failed render must not reference an output, got %q", result.OutputPath)
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial output removed, stat err=%v", err)
	}
	if result.Failure.ExitCode != 1 || result.Failure.TimedOut {
		t.Fatalf("unexpected failure %+v", result.Failure)
	}
	if !strings.Contains(result.Failure.Diagnostic, "Invalid data found") {
		t.Fatalf("expected stderr in diagnostic, got %q", result.Failure.Diagnostic)
	}
	if result.Failure.ErrorKind() != "render_failure" {
		t.Fatalf("unexpected error kind %q", result.Failure.ErrorKind())
	}
}

func TestRenderDiagnosticIsTruncated(t *testing.T) {
	setHelperCommand(t, "noisy", nil)
	r, _ := newTestRenderer(t)

	result := r.Render(context.Background(), Job{ImagePath: "/w/i.jpg", AudioPath: "/w/a.mp3"})
	if result.Failure == nil {
		t.Fatal("expected failure")
	}
	diag := result.Failure.Diagnostic
	if n := len([]rune(diag)); n > DiagnosticLimit {
		t.Fatalf("diagnostic has %d characters, limit %d", n, DiagnosticLimit)
	}
	if !strings.HasSuffix(diag, "final error line") {
		t.Fatalf("expected diagnostic to keep the stderr tail, got ...%q", diag[len(diag)-40:])
	}
}

func TestRenderTimeoutKillsEncoder(t *testing.T) {
	setHelperCommand(t, "hang", nil)
	r, output := newTestRenderer(t, WithTimeout(300*time.Millisecond, 0))

	started := time.Now()
	result := r.Render(context.Background(), Job{ImagePath: "/w/i.jpg", AudioPath: "/w/a.mp3"})
	if time.Since(started) > 20*time.Second {
		t.Fatal("render did not stop at the timeout")
	}
	if result.Failure == nil || !result.Failure.TimedOut {
		t.Fatalf("expected timed out failure, got %+v", result.Failure)
	}
	if !strings.Contains(result.Failure.Diagnostic, "timeout") {
		t.Fatalf("expected timeout diagnostic, got %q", result.Failure.Diagnostic)
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial output removed after timeout, stat err=%v", err)
	}
}

func TestRenderEmptyOutputIsFailure(t *testing.T) {
	setHelperCommand(t, "empty", nil)
	r, output := newTestRenderer(t)

	result := r.Render(context.Background(), Job{ImagePath: "/w/i.jpg", AudioPath: "/w/a.mp3"})
	if result.Failure == nil {
		t.Fatal("expected failure for empty output")
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected empty output removed, stat err=%v", err)
	}
}

func TestRenderRequiresInputs(t *testing.T) {
	r, _ := newTestRenderer(t)
	if result := r.Render(context.Background(), Job{AudioPath: "/w/a.mp3"}); result.Failure == nil {
		t.Fatal("expected failure when image path is missing")
	}
}

func TestTruncateDiagnosticKeepsRunes(t *testing.T) {
	in := strings.Repeat("ж", 10)
	if got := truncateDiagnostic(in, 4); got != "жжжж" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncateDiagnostic("short", 10); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	output := ""
	if len(args) > 0 {
		output = args[len(args)-1]
	}

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		_ = os.WriteFile(output, make([]byte, 2048), 0o644)
		os.Exit(0)
	case "failure":
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		fmt.Fprintln(os.Stderr, "/w/a.mp3: Invalid data found when processing input")
		os.Exit(1)
	case "noisy":
		for i := 0; i < 500; i++ {
			fmt.Fprintf(os.Stderr, "frame=%05d noise noise noise\n", i)
		}
		fmt.Fprint(os.Stderr, "final error line")
		os.Exit(1)
	case "hang":
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		time.Sleep(time.Minute)
		os.Exit(0)
	case "empty":
		_ = os.WriteFile(output, nil, 0o644)
		os.Exit(0)
	default:
		os.Exit(0)
	}
}

func TestTimeoutDiagnosticKeepsNoticeWithinLimit(t *testing.T) {
	tail := strings.Repeat("x", DiagnosticLimit-1) + "last"
	diag := timeoutDiagnostic(90*time.Second, tail)

	if !strings.HasPrefix(diag, "encoder killed after 1m30s timeout\n") {
		t.Fatalf("timeout notice lost, got prefix %q", diag[:40])
	}
	if !strings.HasSuffix(diag, "last") {
		t.Fatal("expected the stderr tail to end the diagnostic")
	}
	if n := len([]rune(diag)); n != DiagnosticLimit {
		t.Fatalf("diagnostic has %d characters, want %d", n, DiagnosticLimit)
	}

	short := timeoutDiagnostic(time.Second, "boom")
	if short != "encoder killed after 1s timeout\nboom" {
		t.Fatalf("unexpected short diagnostic %q", short)
	}
}
