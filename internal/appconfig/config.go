package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/threadpager/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	Locale        string         `mapstructure:"locale" yaml:"locale"`
	Pager         PagerConfig    `mapstructure:"pager" yaml:"pager"`
	Dispatch      DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`
	Bus           BusConfig      `mapstructure:"bus" yaml:"bus"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// PagerConfig controls window sizing and placeholder synthesis.
type PagerConfig struct {
	PageSize        int    `mapstructure:"page_size" yaml:"page_size"`
	TickMillis      int    `mapstructure:"tick_ms" yaml:"tick_ms"`
	DefaultCurrency string `mapstructure:"default_currency" yaml:"default_currency"`
}

// DispatchConfig controls how fetch batches are executed.
type DispatchConfig struct {
	PageLimit      int     `mapstructure:"page_limit" yaml:"page_limit"`
	RatePerSecond  float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst          int     `mapstructure:"burst" yaml:"burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// BusConfig controls event fanout buffering.
type BusConfig struct {
	Depth int `mapstructure:"depth" yaml:"depth"`
}

// SessionConfig converts the pager section to the core representation.
func (c Config) SessionConfig() schema.PagerConfig {
	return schema.PagerConfig{
		PageSize:        c.Pager.PageSize,
		Tick:            time.Duration(c.Pager.TickMillis) * time.Millisecond,
		DefaultCurrency: c.Pager.DefaultCurrency,
	}
}

// DispatchTimeout returns the per-leg fetch timeout.
func (c Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Dispatch.TimeoutSeconds) * time.Second
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".threadpager", "state"),
		Locale:        "en",
		Pager: PagerConfig{
			PageSize:        schema.DefaultPageSize,
			TickMillis:      int(schema.DefaultTick / time.Millisecond),
			DefaultCurrency: schema.DefaultCurrency,
		},
		Dispatch: DispatchConfig{
			PageLimit:      schema.DefaultPageSize,
			RatePerSecond:  10,
			Burst:          2,
			TimeoutSeconds: 30,
		},
		Bus: BusConfig{
			Depth: 256,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".threadpager", "config.yaml"), nil
}
