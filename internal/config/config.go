package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the file.
const (
	EnvAPIToken = "MATCHCHAT_API_TOKEN"
	EnvAPIURL   = "MATCHCHAT_API_URL"
)

// Config represents the global ~/.matchchat/config.toml.
type Config struct {
	DefaultProfile string        `toml:"default_profile"`
	API            APIConfig     `toml:"api"`
	User           UserConfig    `toml:"user"`
	Polling        PollingConfig `toml:"polling"`
	Log            LogConfig     `toml:"log"`
}

// APIConfig locates and authenticates against the messaging service.
type APIConfig struct {
	BaseURL  string   `toml:"base_url"`
	Token    string   `toml:"token"`
	Timeout  Duration `toml:"timeout"`
	RetryMax int      `toml:"retry_max"`
}

// UserConfig identifies the signed-in user.
type UserConfig struct {
	ID string `toml:"id"`
}

// PollingConfig sets the refresh intervals of focused views.
type PollingConfig struct {
	ListInterval   Duration `toml:"list_interval"`
	ThreadInterval Duration `toml:"thread_interval"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		API: APIConfig{
			BaseURL:  "http://localhost:8080/api",
			Timeout:  Duration{15 * time.Second},
			RetryMax: 2,
		},
		Polling: PollingConfig{
			ListInterval:   Duration{30 * time.Second},
			ThreadInterval: Duration{10 * time.Second},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from the given path on top of the defaults and applies
// environment overrides. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault is Load that falls back to the defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an http(s) url", c.API.BaseURL)
	}
	if c.API.Timeout.Duration <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.RetryMax < 0 {
		return fmt.Errorf("api.retry_max must not be negative")
	}
	if c.Polling.ListInterval.Duration <= 0 || c.Polling.ThreadInterval.Duration <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
