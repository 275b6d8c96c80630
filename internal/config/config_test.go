package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"stillframe/internal/config"
	"stillframe/internal/locale"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("WORKDIR", filepath.Join(tempHome, "work"))
	t.Setenv("MAX_OUTPUT_MB", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.Paths.WorkDir != filepath.Join(tempHome, "work") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "stillframe")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("expected token from env, got %q", cfg.Telegram.Token)
	}
	if cfg.Render.MaxOutputMB != 45 {
		t.Fatalf("expected default max output of 45MB, got %d", cfg.Render.MaxOutputMB)
	}
	if cfg.DefaultLanguage() != locale.RU {
		t.Fatalf("expected RU default language, got %q", cfg.DefaultLanguage())
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "stillframe.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if err := cfg.RequireTelegram(); err != nil {
		t.Fatalf("RequireTelegram: %v", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("WORKDIR", "")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("MAX_OUTPUT_MB", "")
	configPath := filepath.Join(tempDir, "stillframe.toml")

	type payload struct {
		Paths struct {
			WorkDir string `toml:"work_dir"`
		} `toml:"paths"`
		Render struct {
			MaxOutputMB    int `toml:"max_output_mb"`
			TimeoutSeconds int `toml:"timeout_seconds"`
		} `toml:"render"`
		Locale struct {
			DefaultLanguage string `toml:"default_language"`
		} `toml:"locale"`
	}
	custom := payload{}
	custom.Paths.WorkDir = "~/uploads"
	custom.Render.MaxOutputMB = 20
	custom.Render.TimeoutSeconds = 60
	custom.Locale.DefaultLanguage = "en"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to be used, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempDir, "uploads") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	if cfg.MaxOutputBytes() != 20*1024*1024 {
		t.Fatalf("unexpected max output bytes: %d", cfg.MaxOutputBytes())
	}
	if cfg.RenderTimeout() != time.Minute {
		t.Fatalf("unexpected render timeout: %v", cfg.RenderTimeout())
	}
	if cfg.DefaultLanguage() != locale.EN {
		t.Fatalf("expected EN default language, got %q", cfg.DefaultLanguage())
	}
	if err := cfg.RequireTelegram(); err == nil {
		t.Fatal("expected RequireTelegram to fail without a token")
	}
}

func TestMaxOutputEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MAX_OUTPUT_MB", "12")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Render.MaxOutputMB != 12 {
		t.Fatalf("expected MAX_OUTPUT_MB override, got %d", cfg.Render.MaxOutputMB)
	}

	t.Setenv("MAX_OUTPUT_MB", "lots")
	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for non-numeric MAX_OUTPUT_MB")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bitrate", func(c *config.Config) { c.Render.AudioBitrate = "loud" }, "render.audio_bitrate"},
		{"language", func(c *config.Config) { c.Locale.DefaultLanguage = "DE" }, "locale.default_language"},
		{"timeout", func(c *config.Config) { c.Render.TimeoutSeconds = 0 }, "render.timeout_seconds"},
		{"level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BOT_TOKEN", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Render.AudioBitrate != "192k" {
		t.Fatalf("unexpected sample bitrate: %q", cfg.Render.AudioBitrate)
	}
}
