package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.User.ID = "u1"
	cfg.Polling.ThreadInterval = Duration{5 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.User.ID != "u1" {
		t.Errorf("User.ID = %q, want %q", loaded.User.ID, "u1")
	}
	if loaded.Polling.ThreadInterval.Duration != 5*time.Second {
		t.Errorf("ThreadInterval = %v, want 5s", loaded.Polling.ThreadInterval)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[api]\nbase_url = \"https://chat.example.com\"\n\n[polling]\nlist_interval = \"1m\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Polling.ListInterval.Duration != time.Minute {
		t.Errorf("ListInterval = %v, want 1m", cfg.Polling.ListInterval)
	}
	if cfg.Polling.ThreadInterval.Duration != 10*time.Second {
		t.Errorf("ThreadInterval = %v, want default 10s", cfg.Polling.ThreadInterval)
	}
	if cfg.API.Timeout.Duration != 15*time.Second {
		t.Errorf("Timeout = %v, want default 15s", cfg.API.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	t.Setenv(EnvAPIToken, "from-env")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultProfile != "main" {
		t.Errorf("DefaultProfile = %q, want main", cfg.DefaultProfile)
	}
	if cfg.API.Token != "from-env" {
		t.Errorf("Token = %q, want env override", cfg.API.Token)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.API.Token = "file-token"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAPIToken, "env-token")
	t.Setenv(EnvAPIURL, "https://override.example.com")

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.API.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", loaded.API.Token)
	}
	if loaded.API.BaseURL != "https://override.example.com" {
		t.Errorf("BaseURL = %q", loaded.API.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.API.BaseURL = "localhost" }},
		{"zero timeout", func(c *Config) { c.API.Timeout = Duration{} }},
		{"negative retries", func(c *Config) { c.API.RetryMax = -1 }},
		{"zero interval", func(c *Config) { c.Polling.ListInterval = Duration{} }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
