package config

import (
	"errors"
	"fmt"

	"wordsync/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateFallback(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAlignment() error {
	if language.ToISO2(c.Alignment.Language) == "" {
		return fmt.Errorf("alignment.language %q is not a recognized language", c.Alignment.Language)
	}
	switch c.Alignment.Device {
	case "cpu", "cuda", "mps":
	default:
		return fmt.Errorf("alignment.device must be cpu, cuda, or mps (got %q)", c.Alignment.Device)
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.AudioTrack < autoAudioTrack {
		return errors.New("extraction.audio_track must be >= 0, or -1 to select by language")
	}
	return nil
}

func (c *Config) validateFallback() error {
	if c.Fallback.ClipPaddingSeconds < 0 || c.Fallback.ClipPaddingSeconds > maxFallbackClipPaddingSecond {
		return fmt.Errorf("fallback.clip_padding_seconds must be between 0 and %.0f", maxFallbackClipPaddingSecond)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
