package schema

import (
	"fmt"
	"strings"
	"time"
)

// PagerConfig tunes window sizing and placeholder synthesis.
type PagerConfig struct {
	// PageSize is the number of entries a window widens by per step.
	PageSize int
	// Tick is the offset used to date synthesized entries.
	Tick time.Duration
	// DefaultCurrency is used for synthesized zero-valued contributors.
	DefaultCurrency string
}

const (
	// DefaultPageSize matches the initial pagination size of the list view.
	DefaultPageSize = 50
	// DefaultTick is one millisecond.
	DefaultTick = time.Millisecond
	// DefaultCurrency is used when no currency is configured.
	DefaultCurrency = "USD"
)

// NormalizePagerConfig applies defaults and validates the config.
func NormalizePagerConfig(cfg PagerConfig) (PagerConfig, error) {
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Tick == 0 {
		cfg.Tick = DefaultTick
	}
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	if cfg.PageSize < 0 {
		return PagerConfig{}, fmt.Errorf("%w: page size %d", ErrInvalidConfig, cfg.PageSize)
	}
	if cfg.Tick < 0 {
		return PagerConfig{}, fmt.Errorf("%w: tick %s", ErrInvalidConfig, cfg.Tick)
	}
	return cfg, nil
}
