package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Refinement (optional remote model)
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	RefineEnabled  bool    `mapstructure:"refine_enabled" yaml:"refine_enabled"`
	RefineProvider string  `mapstructure:"refine_provider" yaml:"refine_provider"`
	RefineModel    string  `mapstructure:"refine_model" yaml:"refine_model"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	RefineWaitSec  int     `mapstructure:"refine_wait_sec" yaml:"refine_wait_sec"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Ingestion and analysis
	DefaultTechnology string  `mapstructure:"default_technology" yaml:"default_technology"`
	BaseDate          string  `mapstructure:"base_date" yaml:"base_date"`
	CenterLat         float64 `mapstructure:"center_lat" yaml:"center_lat"`
	CenterLon         float64 `mapstructure:"center_lon" yaml:"center_lon"`
	Seed              int64   `mapstructure:"seed" yaml:"seed"`
	MaxRows           int     `mapstructure:"max_rows" yaml:"max_rows"`

	// HTTP server
	ServeAddr string `mapstructure:"serve_addr" yaml:"serve_addr"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"api_key", "refine_enabled", "refine_provider", "refine_model", "max_tokens",
	"temperature", "refine_wait_sec", "http_timeout_sec", "retry_max_attempts",
	"retry_base_delay_ms", "retry_max_delay_ms", "ollama_host", "default_technology",
	"base_date", "center_lat", "center_lon", "seed", "max_rows", "serve_addr",
}

// Dir returns ~/.sigloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sigloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.sigloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SIGLOOM")
	v.AutomaticEnv()

	v.SetDefault("api_key", "")
	v.SetDefault("refine_enabled", false)
	v.SetDefault("refine_provider", "openrouter")
	v.SetDefault("refine_model", "openai/gpt-4o-mini")
	v.SetDefault("max_tokens", 400)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("refine_wait_sec", 20)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	// Ingestion defaults
	v.SetDefault("default_technology", "All")
	v.SetDefault("base_date", "2025-08-01")
	v.SetDefault("center_lat", -26.2041)
	v.SetDefault("center_lon", 28.0473)
	v.SetDefault("seed", 0)
	v.SetDefault("max_rows", 0)
	v.SetDefault("serve_addr", ":8080")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing && cfgFile != "" && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := c.ParseBaseDate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseBaseDate parses BaseDate as YYYY-MM-DD or RFC3339. Empty yields the zero time.
func (c *Global) ParseBaseDate() (time.Time, error) {
	if c.BaseDate == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, c.BaseDate); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid base_date %q (want YYYY-MM-DD)", c.BaseDate)
}

// HTTPTimeout returns the configured timeout as a duration.
func (c *Global) HTTPTimeout() time.Duration { return time.Duration(c.HTTPTimeoutSec) * time.Second }

// RetryBaseDelay returns the configured base backoff.
func (c *Global) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the configured backoff cap.
func (c *Global) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// RefineWait is how long the CLI waits for a refined answer.
func (c *Global) RefineWait() time.Duration { return time.Duration(c.RefineWaitSec) * time.Second }
