// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Runner   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless  bool          `mapstructure:"headless" yaml:"headless"`
	Args      []string      `mapstructure:"args" yaml:"args"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	SlowMo    time.Duration `mapstructure:"slow_mo" yaml:"slow_mo"`
}

// NetworkConfig tunes page-load behavior. Headers are applied to every
// request the session issues.
type NetworkConfig struct {
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration     `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
}

// RunnerConfig bounds individual step actions and whole plan runs.
type RunnerConfig struct {
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	RunTimeout  time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// ServerConfig holds settings for the HTTP launch endpoint.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr" yaml:"addr"`
	APIKeys       []string      `mapstructure:"api_keys" yaml:"-"`
	RatePerMinute int           `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
	MaxConns      int           `mapstructure:"max_conns" yaml:"max_conns"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
}

// DatabaseConfig holds the run-history database connection details. An
// empty URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults registers the default value for every key so viper can
// unmarshal a complete Config even without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "planpilot")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", time.Duration(0))

	v.SetDefault("network.navigation_timeout", 90*time.Second)
	v.SetDefault("network.post_load_wait", 500*time.Millisecond)

	v.SetDefault("runner.step_timeout", 30*time.Second)
	v.SetDefault("runner.run_timeout", 10*time.Minute)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_per_minute", 10)
	v.SetDefault("server.max_conns", 64)
	v.SetDefault("server.shutdown_grace", 15*time.Second)
}

// Load unmarshals the resolved viper state into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.Runner.StepTimeout <= 0 {
		return fmt.Errorf("runner.step_timeout must be positive, got %s", c.Runner.StepTimeout)
	}
	if c.Runner.RunTimeout <= 0 {
		return fmt.Errorf("runner.run_timeout must be positive, got %s", c.Runner.RunTimeout)
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be positive, got %s", c.Network.NavigationTimeout)
	}
	if c.Server.RatePerMinute < 0 {
		return fmt.Errorf("server.rate_per_minute must not be negative, got %d", c.Server.RatePerMinute)
	}
	return nil
}
