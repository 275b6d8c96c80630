package config

const (
	defaultConfigPath                   = "~/.config/stillframe/config.toml"
	defaultWorkDir                      = "./workdir"
	defaultStateDir                     = "~/.local/share/stillframe"
	defaultLogDir                       = "~/.local/share/stillframe/logs"
	defaultOrphanMaxAgeHours            = 24
	defaultTelegramAPIBaseURL           = "https://api.telegram.org"
	defaultTelegramPollTimeoutSeconds   = 30
	defaultTelegramRequestTimeout       = 120
	defaultTelegramMaxConcurrentUpdates = 16
	defaultFFmpegBinary                 = "ffmpeg"
	defaultFFprobeBinary                = "ffprobe"
	defaultRenderTimeoutSeconds         = 300
	defaultRenderTimeoutPerAudioMinute  = 120
	defaultMaxOutputMB                  = 45
	defaultAudioBitrate                 = "192k"
	defaultMinFreeDiskMB                = 512
	defaultLanguage                     = "RU"
	defaultLogFormat                    = "console"
	defaultLogLevel                     = "info"
	defaultLogRetentionDays             = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:           defaultWorkDir,
			StateDir:          defaultStateDir,
			LogDir:            defaultLogDir,
			OrphanMaxAgeHours: defaultOrphanMaxAgeHours,
		},
		Telegram: Telegram{
			APIBaseURL:            defaultTelegramAPIBaseURL,
			PollTimeoutSeconds:    defaultTelegramPollTimeoutSeconds,
			RequestTimeoutSeconds: defaultTelegramRequestTimeout,
			MaxConcurrentUpdates:  defaultTelegramMaxConcurrentUpdates,
		},
		Render: Render{
			FFmpegBinary:                 defaultFFmpegBinary,
			FFprobeBinary:                defaultFFprobeBinary,
			TimeoutSeconds:               defaultRenderTimeoutSeconds,
			TimeoutPerAudioMinuteSeconds: defaultRenderTimeoutPerAudioMinute,
			MaxOutputMB:                  defaultMaxOutputMB,
			AudioBitrate:                 defaultAudioBitrate,
			MinFreeDiskMB:                defaultMinFreeDiskMB,
		},
		Locale: Locale{
			DefaultLanguage: defaultLanguage,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
