package config

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"stillframe/internal/locale"
)

var audioBitratePattern = regexp.MustCompile(`^[0-9]+k$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLocale(); err != nil {
		return err
	}
	return c.validateLogging()
}

// RequireTelegram reports whether the Bot API settings are usable. Only the
// daemon needs them; offline commands such as render and sessions do not.
func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("telegram.token is required. Set BOT_TOKEN env var or edit %s (create with 'stillframe config init')", defaultPath)
	}
	if !strings.HasPrefix(c.Telegram.APIBaseURL, "http://") && !strings.HasPrefix(c.Telegram.APIBaseURL, "https://") {
		return fmt.Errorf("telegram.api_base_url must be an http(s) URL, got %q", c.Telegram.APIBaseURL)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	if err := ensurePositiveMap(map[string]int{
		"render.timeout_seconds":           c.Render.TimeoutSeconds,
		"render.max_output_mb":             c.Render.MaxOutputMB,
		"telegram.poll_timeout_seconds":    c.Telegram.PollTimeoutSeconds,
		"telegram.request_timeout_seconds": c.Telegram.RequestTimeoutSeconds,
		"telegram.max_concurrent_updates":  c.Telegram.MaxConcurrentUpdates,
	}); err != nil {
		return err
	}
	if !audioBitratePattern.MatchString(c.Render.AudioBitrate) {
		return fmt.Errorf("render.audio_bitrate must look like \"192k\", got %q", c.Render.AudioBitrate)
	}
	return nil
}

func (c *Config) validateLocale() error {
	if _, ok := locale.Parse(c.Locale.DefaultLanguage); !ok {
		return fmt.Errorf("locale.default_language: unsupported value %q", c.Locale.DefaultLanguage)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// DefaultLanguage returns the parsed fallback language.
func (c *Config) DefaultLanguage() locale.Lang {
	lang, ok := locale.Parse(c.Locale.DefaultLanguage)
	if !ok {
		return locale.RU
	}
	return lang
}
