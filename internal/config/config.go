package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" decode directly.
type Duration time.Duration

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the server configuration.
type Config struct {
	ListenAddr      string   `yaml:"listen_addr"`
	AllowedOrigin   string   `yaml:"allowed_origin"`
	UsersFile       string   `yaml:"users_file"`
	RefreshInterval Duration `yaml:"refresh_interval"`
	HistoryLimit    int      `yaml:"history_limit"`
	StaticDir       string   `yaml:"static_dir"`
	RedisAddr       string   `yaml:"redis_addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddr:      ":3000",
		AllowedOrigin:   "*",
		UsersFile:       "users.txt",
		RefreshInterval: Duration(5 * time.Second),
		HistoryLimit:    100,
		StaticDir:       "public",
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides config values from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("ALLOWED_ORIGIN"); v != "" {
		c.AllowedOrigin = v
	}
	if v := os.Getenv("USERS_FILE"); v != "" {
		c.UsersFile = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.StaticDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.UsersFile == "" {
		return fmt.Errorf("users_file is required")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive")
	}
	return nil
}
