// Package config loads and persists aide's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the aide server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Session  SessionConfig  `yaml:"session"`
	Approval ApprovalConfig `yaml:"approval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// BodyLimitMB caps request body size (uploads included).
	BodyLimitMB int `yaml:"body_limit_mb"`
}

// StorageConfig holds durable storage settings.
type StorageConfig struct {
	// DataDir is the root directory for memory documents and session
	// workspaces. Defaults to ~/.aide/data.
	DataDir string `yaml:"data_dir"`
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	// OwnerUserID pins every session to a single user in personal mode.
	// Leave empty to resolve users per request.
	OwnerUserID string `yaml:"owner_user_id"`

	// IdleTimeoutSeconds is how long a session may sit idle before the
	// sweeper reclaims it.
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`

	// SweepIntervalSeconds is how often the idle sweeper runs.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`

	// SandboxImage is the container image used for sandbox workspaces.
	SandboxImage string `yaml:"sandbox_image"`
}

// ApprovalConfig holds tool approval settings.
type ApprovalConfig struct {
	// AutoApprove lists glob patterns for tool names that never require
	// user approval. Everything else pauses the turn.
	AutoApprove []string `yaml:"auto_approve"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			BodyLimitMB: 25,
		},
		Storage: StorageConfig{},
		LLM: LLMConfig{
			Model: "gpt-4o",
		},
		Session: SessionConfig{
			OwnerUserID:          "owner",
			IdleTimeoutSeconds:   3600,
			SweepIntervalSeconds: 300,
			SandboxImage:         "aide-sandbox:latest",
		},
		Approval: ApprovalConfig{
			AutoApprove: []string{
				"read_memory",
				"get_*",
				"search_*",
				"assess_*",
				"find_*",
			},
		},
	}
}

// Load reads the config file at path, filling gaps with defaults.
// A missing file is not an error; the defaults are returned.
// If path is empty, ~/.aide/config.yaml is used.
func Load(path string) (*Config, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".aide", "config.yaml")
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyFallbacks()
	return cfg, nil
}

// Save writes the config to path atomically via a temp file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp config: %w", err)
	}
	return nil
}

// applyFallbacks restores defaults for fields an explicit config left zero.
func (c *Config) applyFallbacks() {
	def := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.BodyLimitMB <= 0 {
		c.Server.BodyLimitMB = def.Server.BodyLimitMB
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.Session.IdleTimeoutSeconds <= 0 {
		c.Session.IdleTimeoutSeconds = def.Session.IdleTimeoutSeconds
	}
	if c.Session.SweepIntervalSeconds <= 0 {
		c.Session.SweepIntervalSeconds = def.Session.SweepIntervalSeconds
	}
	if c.Session.SandboxImage == "" {
		c.Session.SandboxImage = def.Session.SandboxImage
	}
}

// DataDir resolves the storage root, defaulting to ~/.aide/data.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".aide", "data"), nil
}

// IdleTimeout returns the session idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSeconds) * time.Second
}

// SweepInterval returns the idle sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalSeconds) * time.Second
}
