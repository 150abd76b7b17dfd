package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aymanbagabas/clipio/clipboard"
	"github.com/aymanbagabas/clipio/internal/logging"
)

// EnvPrefix prefixes every environment variable clipio reads.
const EnvPrefix = "CLIPIO"

// Config holds the options of one invocation.
type Config struct {
	// Write selects write mode. Only set from the command line.
	Write bool `mapstructure:"-"`

	Verbose bool   `mapstructure:"verbose"`
	Image   bool   `mapstructure:"image"`
	Backend string `mapstructure:"backend"`
	Wait    bool   `mapstructure:"wait"`
	Strict  bool   `mapstructure:"strict"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend:   string(clipboard.BackendAuto),
		LogLevel:  logging.LevelOff,
		LogFormat: logging.FormatConsole,
	}
}

// Load merges flags, CLIPIO_* environment variables and defaults, in that
// order of precedence. There is no configuration file.
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("image", cfg.Image)
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("wait", cfg.Wait)
	v.SetDefault("strict", cfg.Strict)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	if flags != nil {
		for _, key := range []string{"verbose", "image", "backend", "wait", "strict"} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
		}
		if f := flags.Lookup("write"); f != nil {
			cfg.Write = f.Value.String() == "true"
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	backend, err := clipboard.ParseBackend(c.Backend)
	if err != nil {
		return err
	}
	c.Backend = string(backend)

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != logging.FormatConsole && c.LogFormat != logging.FormatJSON {
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return nil
}

// Format is the clipboard format selected by the configuration.
func (c *Config) Format() clipboard.Format {
	if c.Image {
		return clipboard.Image
	}
	return clipboard.Text
}

// ClipboardBackend is the validated backend name.
func (c *Config) ClipboardBackend() clipboard.Backend {
	return clipboard.Backend(c.Backend)
}
