// Package config handles CLI configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level static configuration of the strix CLI.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CaptureConfig carries the live-capture defaults.
type CaptureConfig struct {
	Interface string `mapstructure:"interface"` // empty = auto-detect default device
	SnapLen   int32  `mapstructure:"snap_len"`
	Promisc   bool   `mapstructure:"promisc"`
	Filter    string `mapstructure:"filter"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string           `mapstructure:"level"`  // debug|info|warn|error
	Format string           `mapstructure:"format"` // text|json
	File   FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures rotating file log output.
type FileOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// Load reads the configuration file at path (optional) with STRIX_*
// environment overrides and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("capture.snap_len", 65535)
	v.SetDefault("capture.promisc", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")

	v.SetEnvPrefix("STRIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
