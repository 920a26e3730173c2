package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is read once at process start. Every field can come from the yaml
// file, the environment or a command line flag, in increasing precedence.
type Config struct {
	Url     string        `yaml:"url"`
	AnonKey string        `yaml:"anon_key"`
	Timeout string        `yaml:"timeout"`
	Logging LoggingConfig `yaml:"logging"`

	// keep the access token fresh while the browse view is open
	AutoRefresh bool `yaml:"auto_refresh"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: "30s",
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		AutoRefresh: true,
	}
}

// Load reads path (a missing file is fine) and applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to read config")
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "failed to parse config %s", path)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// holds the project key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	return nil
}

// applyEnvOverrides takes the first set variable of each group. The
// SUPABASE_ and NEXT_PUBLIC_SUPABASE_ names let an existing web project's
// env file be reused as is.
func (c *Config) applyEnvOverrides() {
	if url := firstEnv("DANYAK_URL", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"); url != "" {
		c.Url = url
	}
	if key := firstEnv("DANYAK_ANON_KEY", "SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY"); key != "" {
		c.AnonKey = key
	}
	if level := os.Getenv("DANYAK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if timeout := os.Getenv("DANYAK_TIMEOUT"); timeout != "" {
		c.Timeout = timeout
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// GetTimeout returns the per-request timeout, defaulting to 30s.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

var validLevels = []string{"debug", "info", "warn", "error"}

func (c *Config) Validate() error {
	if c.Url == "" {
		return errors.New("service url not configured (set DANYAK_URL or SUPABASE_URL, or pass --url)")
	}
	if !strings.HasPrefix(c.Url, "http://") && !strings.HasPrefix(c.Url, "https://") {
		return errors.Errorf("invalid service url: %s", c.Url)
	}
	if c.AnonKey == "" {
		return errors.New("anon key not configured (set DANYAK_ANON_KEY or SUPABASE_ANON_KEY, or pass --anon-key)")
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return errors.Errorf("invalid timeout: %s", c.Timeout)
		}
	}

	valid := false
	for _, l := range validLevels {
		if c.Logging.Level == l {
			valid = true
			break
		}
	}
	if !valid {
		return errors.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, validLevels)
	}

	return nil
}
