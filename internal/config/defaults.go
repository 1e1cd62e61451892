package config

const (
	defaultConfigPath            = "~/.config/wordsync/config.toml"
	defaultDataDir               = "~/.local/share/wordsync"
	defaultLogDir                = "~/.local/share/wordsync/logs"
	defaultTempDir               = "~/.cache/wordsync/tmp"
	defaultPythonBinary          = "python3"
	defaultAlignmentModule       = "whisper_service.main"
	defaultAlignmentModel        = "large-v3"
	defaultAlignmentLanguage     = "de"
	defaultAlignmentDevice       = "cpu"
	defaultAlignmentComputeType  = "float32"
	defaultAlignmentStartupSecs  = 300
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	autoAudioTrack               = -1
	defaultFallbackBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultFallbackModel         = "google/gemini-2.5-flash"
	defaultFallbackReferer       = "https://github.com/wordsync/wordsync"
	defaultFallbackTitle         = "wordsync word timing"
	defaultFallbackTimeout       = 60
	defaultFallbackRPM           = 30
	defaultFallbackClipPadding   = 0.25
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	maxFallbackClipPaddingSecond = 2.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			TempDir: defaultTempDir,
		},
		Alignment: Alignment{
			PythonBinary:          defaultPythonBinary,
			Module:                defaultAlignmentModule,
			Model:                 defaultAlignmentModel,
			Language:              defaultAlignmentLanguage,
			Device:                defaultAlignmentDevice,
			ComputeType:           defaultAlignmentComputeType,
			StartupTimeoutSeconds: defaultAlignmentStartupSecs,
		},
		Extraction: Extraction{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Fallback: Fallback{
			Enabled:            true,
			BaseURL:            defaultFallbackBaseURL,
			Model:              defaultFallbackModel,
			Referer:            defaultFallbackReferer,
			Title:              defaultFallbackTitle,
			TimeoutSeconds:     defaultFallbackTimeout,
			RequestsPerMinute:  defaultFallbackRPM,
			ClipPaddingSeconds: defaultFallbackClipPadding,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
