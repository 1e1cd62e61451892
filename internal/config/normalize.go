package config

import (
	"fmt"
	"os"
	"strings"

	"wordsync/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAlignment()
	c.normalizeExtraction()
	c.normalizeFallback()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = ExpandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAlignment() {
	c.Alignment.PythonBinary = strings.TrimSpace(c.Alignment.PythonBinary)
	if c.Alignment.PythonBinary == "" {
		c.Alignment.PythonBinary = defaultPythonBinary
	}
	c.Alignment.Module = strings.TrimSpace(c.Alignment.Module)
	if c.Alignment.Module == "" {
		c.Alignment.Module = defaultAlignmentModule
	}
	c.Alignment.Model = strings.TrimSpace(c.Alignment.Model)
	if c.Alignment.Model == "" {
		c.Alignment.Model = defaultAlignmentModel
	}
	c.Alignment.Language = strings.ToLower(strings.TrimSpace(c.Alignment.Language))
	if c.Alignment.Language == "" {
		c.Alignment.Language = defaultAlignmentLanguage
	} else if iso := language.ToISO2(c.Alignment.Language); iso != "" {
		c.Alignment.Language = iso
	}
	c.Alignment.Device = strings.ToLower(strings.TrimSpace(c.Alignment.Device))
	if c.Alignment.Device == "" {
		c.Alignment.Device = defaultAlignmentDevice
	}
	c.Alignment.ComputeType = strings.TrimSpace(c.Alignment.ComputeType)
	if c.Alignment.ComputeType == "" {
		c.Alignment.ComputeType = defaultAlignmentComputeType
	}
	c.Alignment.HFToken = strings.TrimSpace(c.Alignment.HFToken)
	if c.Alignment.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Alignment.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Alignment.HFToken = strings.TrimSpace(value)
		}
	}
	if c.Alignment.StartupTimeoutSeconds <= 0 {
		c.Alignment.StartupTimeoutSeconds = defaultAlignmentStartupSecs
	}
}

func (c *Config) normalizeExtraction() {
	c.Extraction.FFmpegBinary = strings.TrimSpace(c.Extraction.FFmpegBinary)
	if c.Extraction.FFmpegBinary == "" {
		c.Extraction.FFmpegBinary = defaultFFmpegBinary
	}
	c.Extraction.FFprobeBinary = strings.TrimSpace(c.Extraction.FFprobeBinary)
	if c.Extraction.FFprobeBinary == "" {
		c.Extraction.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeFallback() {
	c.Fallback.APIKey = strings.TrimSpace(c.Fallback.APIKey)
	if c.Fallback.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Fallback.APIKey = strings.TrimSpace(value)
		}
	}
	c.Fallback.BaseURL = strings.TrimSpace(c.Fallback.BaseURL)
	if c.Fallback.BaseURL == "" {
		c.Fallback.BaseURL = defaultFallbackBaseURL
	}
	c.Fallback.Model = strings.TrimSpace(c.Fallback.Model)
	if c.Fallback.Model == "" {
		c.Fallback.Model = defaultFallbackModel
	}
	c.Fallback.Referer = strings.TrimSpace(c.Fallback.Referer)
	c.Fallback.Title = strings.TrimSpace(c.Fallback.Title)
	if c.Fallback.TimeoutSeconds <= 0 {
		c.Fallback.TimeoutSeconds = defaultFallbackTimeout
	}
	if c.Fallback.RequestsPerMinute <= 0 {
		c.Fallback.RequestsPerMinute = defaultFallbackRPM
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
