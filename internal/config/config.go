package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir           string `toml:"work_dir"`
	StateDir          string `toml:"state_dir"`
	LogDir            string `toml:"log_dir"`
	OrphanMaxAgeHours int    `toml:"orphan_max_age_hours"`
}

// Telegram contains Bot API connection settings.
type Telegram struct {
	Token                 string `toml:"token"`
	APIBaseURL            string `toml:"api_base_url"`
	PollTimeoutSeconds    int    `toml:"poll_timeout_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxConcurrentUpdates  int    `toml:"max_concurrent_updates"`
}

// Render contains configuration for the external transcoder.
type Render struct {
	FFmpegBinary                 string `toml:"ffmpeg_binary"`
	FFprobeBinary                string `toml:"ffprobe_binary"`
	TimeoutSeconds               int    `toml:"timeout_seconds"`
	TimeoutPerAudioMinuteSeconds int    `toml:"timeout_per_audio_minute_seconds"`
	// MaxOutputMB is the size above which a warning is shown before delivery.
	// Larger outputs are still sent.
	MaxOutputMB   int    `toml:"max_output_mb"`
	AudioBitrate  string `toml:"audio_bitrate"`
	MinFreeDiskMB int    `toml:"min_free_disk_mb"`
}

// Locale contains language defaults.
type Locale struct {
	DefaultLanguage string `toml:"default_language"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for stillframe.
//
// Configuration sections by subsystem:
//   - Paths: working directory for uploads/renders, state database, logs
//   - Telegram: Bot API token and polling behaviour
//   - Render: ffmpeg binaries, timeouts, output size warning threshold
//   - Locale: fallback interface language
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Telegram Telegram `toml:"telegram"`
	Render   Render   `toml:"render"`
	Locale   Locale   `toml:"locale"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stillframe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file holding settings and sessions.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "stillframe.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "stillframe.lock")
}

// PIDPath returns the file the running daemon records its process id in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "stillframe.pid")
}

// RenderTimeout returns the base render timeout.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// RenderTimeoutPerAudioMinute returns the extra budget granted per minute of audio.
func (c *Config) RenderTimeoutPerAudioMinute() time.Duration {
	return time.Duration(c.Render.TimeoutPerAudioMinuteSeconds) * time.Second
}

// MaxOutputBytes returns the delivery warning threshold in bytes.
func (c *Config) MaxOutputBytes() int64 {
	return int64(c.Render.MaxOutputMB) * 1024 * 1024
}

// OrphanMaxAge returns how old an unreferenced working file must be before it is swept.
func (c *Config) OrphanMaxAge() time.Duration {
	return time.Duration(c.Paths.OrphanMaxAgeHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
