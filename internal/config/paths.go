package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// ErrConfigExists is returned by WriteSample when the target exists and
// overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// DefaultConfigPath returns the absolute path of the user configuration file.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// ExpandPath resolves a leading "~" to the home directory and returns the
// cleaned absolute path. Empty input stays empty.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// resolveConfigPath picks the explicit path when given, otherwise the first
// existing file among the user config and ./wordsync.toml. The user config
// path is returned (not existing) when neither is present.
func resolveConfigPath(explicit string) (string, bool, error) {
	if explicit != "" {
		path, err := ExpandPath(explicit)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return path, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return path, true, nil
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	localPath, err := filepath.Abs("wordsync.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if isFile(candidate) {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

// loadDotEnv fills unset environment variables from .env files next to the
// config and in the working directory. Variables already set always win.
func loadDotEnv(configPath string) error {
	var candidates []string
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	candidates = append(candidates, ".env")

	loaded := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil || loaded[abs] || !isFile(abs) {
			continue
		}
		loaded[abs] = true
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load %s: %w", abs, err)
		}
	}
	return nil
}

// WriteSample writes the annotated sample configuration to path, or to the
// user config location when path is empty, and returns where it was written.
func WriteSample(path string, overwrite bool) (string, error) {
	target, err := DefaultConfigPath()
	if strings.TrimSpace(path) != "" {
		target, err = ExpandPath(strings.TrimSpace(path))
	}
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	if !overwrite {
		if _, err := os.Stat(target); err == nil {
			return "", fmt.Errorf("%w at %s (use --overwrite to replace it)", ErrConfigExists, target)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("check config path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return target, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
