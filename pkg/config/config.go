// Package config handles configuration for uiselector.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration file (uiselector.yaml). Durations are
// written as Go duration strings ("500ms", "5s").
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Selector SelectorConfig `yaml:"selector"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig locates the UIAutomator2 server.
type ServerConfig struct {
	Socket         string        `yaml:"socket"`    // Unix socket; takes precedence over Port
	Port           int           `yaml:"port"`      // Forwarded TCP port
	SessionID      string        `yaml:"sessionId"` // Attach to an existing session
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// Serial, when set, forwards a local endpoint to DevicePort on that
	// device over adb before connecting. "auto" picks the first device.
	Serial     string `yaml:"serial"`
	DevicePort int    `yaml:"devicePort"`
}

// SelectorConfig tunes query resolution.
type SelectorConfig struct {
	WaitTimeout        time.Duration `yaml:"waitTimeout"`
	PollInterval       time.Duration `yaml:"pollInterval"`
	StaleTimeout       time.Duration `yaml:"staleTimeout"`
	StaleRetryInterval time.Duration `yaml:"staleRetryInterval"`
	CacheMaxAge        time.Duration `yaml:"cacheMaxAge"` // 0 re-reads the hierarchy on every query
	RaiseOnNotFound    bool          `yaml:"raiseOnNotFound"`
}

// WatcherConfig tunes the watcher poll loop.
type WatcherConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
}

// LogConfig configures the log file.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           6790,
			RequestTimeout: 30 * time.Second,
			DevicePort:     6790,
		},
		Selector: SelectorConfig{
			WaitTimeout:  time.Second,
			PollInterval: 100 * time.Millisecond,
			StaleTimeout: 5 * time.Second,
		},
		Watcher: WatcherConfig{
			PollInterval: time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a file. Keys absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir looks for uiselector.yaml or uiselector.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try uiselector.yaml first
	configPath := filepath.Join(dir, "uiselector.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try uiselector.yml
	configPath = filepath.Join(dir, "uiselector.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

// Validate rejects negative durations and out-of-range ports.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"server.requestTimeout", c.Server.RequestTimeout},
		{"selector.waitTimeout", c.Selector.WaitTimeout},
		{"selector.pollInterval", c.Selector.PollInterval},
		{"selector.staleTimeout", c.Selector.StaleTimeout},
		{"selector.staleRetryInterval", c.Selector.StaleRetryInterval},
		{"selector.cacheMaxAge", c.Selector.CacheMaxAge},
		{"watcher.pollInterval", c.Watcher.PollInterval},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.name, d.d)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.DevicePort < 0 || c.Server.DevicePort > 65535 {
		return fmt.Errorf("server.devicePort out of range: %d", c.Server.DevicePort)
	}
	return nil
}
