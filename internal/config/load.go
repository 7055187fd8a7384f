package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrInvalidBlendMode     = errors.New("blend.mode must be replace or additive")
	ErrInvalidAdditiveScale = errors.New("blend.additive_scale must be add or multiply")
	ErrInvalidSubstep       = errors.New("playback.max_audio_substep must be positive")
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	// Explicit path takes priority
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Blend.Mode {
	case "replace", "additive":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBlendMode, c.Blend.Mode)
	}
	switch c.Blend.AdditiveScale {
	case "add", "multiply":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAdditiveScale, c.Blend.AdditiveScale)
	}
	if c.Playback.MaxAudioSubstep <= 0 {
		return ErrInvalidSubstep
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./facefx.yaml",
		filepath.Join(ConfigDir(), "facefx.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "FaceFXGo")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "FaceFXGo")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "facefx-go")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "facefx-go")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
