package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"wordsync/internal/config"
	"wordsync/internal/logging"
	"wordsync/internal/subtitle"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// configPath returns the --config flag value, or "" to search the defaults.
func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads and validates the config once per invocation and makes
// sure its directories exist.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		c.config, c.configErr = cfg, err
		if err != nil {
			c.config = nil
		}
	})
	return c.config, c.configErr
}

// ensureLogger builds the file-backed logger on first use, or a no-op logger
// when the config or log directory is unusable.
func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		c.logger = logging.NewNop()
		if cfg, err := c.ensureConfig(); err == nil {
			if logger, err := logging.NewFromConfig(cfg); err == nil {
				c.logger = logger
			}
		}
	})
	return c.logger
}

func (c *commandContext) withStore(fn func(*config.Config, *subtitle.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := subtitle.Open(cfg)
	if err != nil {
		return fmt.Errorf("open subtitle store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
