package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	TempDir string `toml:"temp_dir"`
}

// Alignment contains settings for the WhisperX forced-alignment service.
type Alignment struct {
	PythonBinary          string `toml:"python_binary"`
	Module                string `toml:"module"`
	Model                 string `toml:"model"`
	Language              string `toml:"language"`
	Device                string `toml:"device"`
	ComputeType           string `toml:"compute_type"`
	HFToken               string `toml:"hf_token"`
	StartupTimeoutSeconds int    `toml:"startup_timeout_seconds"`
}

// Extraction contains settings for ffmpeg audio extraction.
type Extraction struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	// AudioTrack is the N of "0:a:N"; -1 selects by alignment language.
	AudioTrack int `toml:"audio_track"`
}

// Fallback contains settings for the generative word-timing fallback.
type Fallback struct {
	Enabled            bool    `toml:"enabled"`
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	Model              string  `toml:"model"`
	Referer            string  `toml:"referer"`
	Title              string  `toml:"title"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	RequestsPerMinute  int     `toml:"requests_per_minute"`
	ClipPaddingSeconds float64 `toml:"clip_padding_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for wordsync.
//
// Configuration sections by subsystem:
//   - Paths: database, log and temporary audio directories
//   - Alignment: WhisperX JSON-RPC service process and model
//   - Extraction: ffmpeg and ffprobe binaries and source audio track
//   - Fallback: generative word-timing model connection settings
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Alignment  Alignment  `toml:"alignment"`
	Extraction Extraction `toml:"extraction"`
	Fallback   Fallback   `toml:"fallback"`
	Logging    Logging    `toml:"logging"`
}

// Load locates, parses and validates a configuration file. It returns the
// config with paths expanded, the resolved file path, and whether that file
// existed. A .env file next to the config or in the working directory is read
// first so credentials can live outside the TOML file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
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

// EnsureDirectories creates required directories for CLI operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.TempDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the subtitle store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "wordsync.db")
}

// FFmpegBinary returns the ffmpeg executable used for audio extraction.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Extraction.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for audio track selection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Extraction.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// AutoAudioTrack reports whether the audio track is chosen per video.
func (c *Config) AutoAudioTrack() bool {
	return c.Extraction.AudioTrack == autoAudioTrack
}

// LLMConfig contains the connection settings for the fallback model.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// FallbackLLM returns the connection settings for the generative fallback.
func (c *Config) FallbackLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.Fallback.APIKey),
		BaseURL:        strings.TrimSpace(c.Fallback.BaseURL),
		Model:          strings.TrimSpace(c.Fallback.Model),
		Referer:        strings.TrimSpace(c.Fallback.Referer),
		Title:          strings.TrimSpace(c.Fallback.Title),
		TimeoutSeconds: c.Fallback.TimeoutSeconds,
	}
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
