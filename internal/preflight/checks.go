package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"stillframe/internal/config"
	"stillframe/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least minMB
// megabytes available to unprivileged users.
func CheckFreeSpace(name, path string, minMB uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeMB := stat.Bavail * uint64(stat.Bsize) / (1024 * 1024)
	if freeMB < minMB {
		return Result{Name: name, Detail: fmt.Sprintf("%d MB free, need %d MB", freeMB, minMB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d MB free", freeMB)}
}

// CheckTelegram calls getMe to verify the bot token. It uses a 10-second
// timeout and a single attempt.
func CheckTelegram(ctx context.Context, baseURL, token string) Result {
	const name = "Telegram"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing api url"}
	}
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing bot token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/bot"+strings.TrimSpace(token)+"/getMe", nil)
	if err != nil {
		return Result{Name: name, Detail: "auth check failed (bad api url)"}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusNotFound:
		return Result{Name: name, Detail: "auth failed (invalid bot token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%d)", resp.StatusCode)}
	}

	var payload struct {
		OK     bool `json:"ok"`
		Result struct {
			Username string `json:"username"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || !payload.OK {
		return Result{Name: name, Detail: "auth check failed (unexpected response)"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable as @%s", payload.Result.Username)}
}

// CheckTelegramFromConfig evaluates Bot API status from config and connectivity.
func CheckTelegramFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: "Telegram", Detail: "Unknown"}
	}
	return CheckTelegram(ctx, cfg.Telegram.APIBaseURL, cfg.Telegram.Token)
}

// CheckSystemDeps evaluates the external binaries the renderer needs. Both the
// daemon and the CLI status command use this to avoid duplicating the
// requirements list. The encoder listing check only runs when ffmpeg itself
// resolved.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Render.FFmpegBinary,
			Description: "Required for rendering",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Render.FFprobeBinary,
			Description: "Required for audio duration probing",
		},
	}
	statuses := deps.CheckBinaries(requirements)
	if statuses[0].Available {
		statuses = append(statuses, deps.CheckFFmpegEncoders(ctx, statuses[0].Command))
	}
	return statuses
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "auth check timed out (Bot API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "auth check timed out (Bot API unreachable)"
	}
	// url.Error embeds the request URL, which carries the token.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("auth check failed (%v)", urlErr.Err)
	}
	return "auth check failed"
}
