package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/caffeinate/pkg/duration"
	"github.com/Veraticus/caffeinate/pkg/inhibit"
	"github.com/Veraticus/caffeinate/pkg/x11"
)

// Config holds all configuration for caffeinate
type Config struct {
	// Durations
	Interval duration.Duration `yaml:"interval" env:"CAFFEINATE_INTERVAL"`
	Sleep    duration.Duration `yaml:"sleep" env:"CAFFEINATE_SLEEP"`

	// Inhibition backend for do and sleep
	Backend string `yaml:"backend" env:"CAFFEINATE_BACKEND"`

	// Keys for loop mode
	SentinelKey string `yaml:"sentinel_key" env:"CAFFEINATE_SENTINEL_KEY"`
	PingKey     string `yaml:"ping_key" env:"CAFFEINATE_PING_KEY"`

	// Polling
	PollInterval       time.Duration `yaml:"poll_interval"`
	KeymapPollInterval time.Duration `yaml:"keymap_poll_interval"`

	// Behavior flags
	PTY   bool `yaml:"pty" env:"CAFFEINATE_PTY"`
	Debug bool `yaml:"debug" env:"CAFFEINATE_DEBUG"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:           duration.Seconds(90),
		Sleep:              duration.Seconds(90),
		Backend:            inhibit.XDGScreensaverName,
		SentinelKey:        "Escape",
		PingKey:            "Shift_L",
		PollInterval:       time.Second,
		KeymapPollInterval: x11.DefaultKeymapPollInterval,
	}
}

// Load loads configuration from the default file location and environment
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath loads configuration from path, or from the default location
// when path is empty. An explicit path must exist.
func LoadWithPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && (explicit || !os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check for explicit config path
	if path := os.Getenv("CAFFEINATE_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "caffeinate", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "caffeinate", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (flag, env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("CAFFEINATE_INTERVAL"); v != "" {
		d, err := duration.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid CAFFEINATE_INTERVAL: %w", err)
		}
		cfg.Interval = d
	}

	if v := os.Getenv("CAFFEINATE_SLEEP"); v != "" {
		d, err := duration.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid CAFFEINATE_SLEEP: %w", err)
		}
		cfg.Sleep = d
	}

	if v := os.Getenv("CAFFEINATE_BACKEND"); v != "" {
		cfg.Backend = v
	}

	if v := os.Getenv("CAFFEINATE_SENTINEL_KEY"); v != "" {
		cfg.SentinelKey = v
	}

	if v := os.Getenv("CAFFEINATE_PING_KEY"); v != "" {
		cfg.PingKey = v
	}

	if v := os.Getenv("CAFFEINATE_PTY"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CAFFEINATE_PTY value: %q (use true/false)", v)
		}
		cfg.PTY = b
	}

	if v := os.Getenv("CAFFEINATE_DEBUG"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CAFFEINATE_DEBUG value: %q (use true/false)", v)
		}
		cfg.Debug = b
	}

	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", v)
	}
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	if cfg.Interval.IsZero() {
		return fmt.Errorf("interval must be positive")
	}

	if cfg.Sleep.IsZero() {
		return fmt.Errorf("sleep must be positive")
	}

	if _, err := inhibit.NormalizeBackend(cfg.Backend); err != nil {
		return err
	}

	if _, err := x11.LookupKeysym(cfg.SentinelKey); err != nil {
		return fmt.Errorf("sentinel_key: %w", err)
	}

	if _, err := x11.LookupKeysym(cfg.PingKey); err != nil {
		return fmt.Errorf("ping_key: %w", err)
	}

	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if cfg.KeymapPollInterval <= 0 {
		return fmt.Errorf("keymap_poll_interval must be positive")
	}

	return nil
}
