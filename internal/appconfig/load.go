package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/threadpager/internal/localecmp"
	"pkt.systems/threadpager/schema"
)

// Load reads the config at path, or DefaultConfigPath when path is empty.
// A missing file yields the defaults; a present file must carry the current
// config_version.
func Load(path string) (Config, error) {
	path, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	defaults, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for key, value := range defaultKeys(defaults) {
		v.SetDefault(key, value)
	}
	switch err := v.ReadInConfig(); {
	case err == nil:
		if err := checkVersion(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	case errors.As(err, new(viper.ConfigFileNotFoundError)), errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultConfigPath()
}

func defaultKeys(cfg Config) map[string]any {
	return map[string]any{
		"config_version":           cfg.ConfigVersion,
		"state_dir":                cfg.StateDir,
		"locale":                   cfg.Locale,
		"pager.page_size":          cfg.Pager.PageSize,
		"pager.tick_ms":            cfg.Pager.TickMillis,
		"pager.default_currency":   cfg.Pager.DefaultCurrency,
		"dispatch.page_limit":      cfg.Dispatch.PageLimit,
		"dispatch.rate_per_second": cfg.Dispatch.RatePerSecond,
		"dispatch.burst":           cfg.Dispatch.Burst,
		"dispatch.timeout_seconds": cfg.Dispatch.TimeoutSeconds,
		"bus.depth":                cfg.Bus.Depth,
	}
}

// checkVersion runs before defaults can mask a missing config_version.
func checkVersion(v *viper.Viper) error {
	if !v.InConfig("config_version") {
		return fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
	}
	if got := v.GetInt("config_version"); got != CurrentConfigVersion {
		return fmt.Errorf("unsupported config_version %d; expected %d", got, CurrentConfigVersion)
	}
	return nil
}

func validate(cfg Config) error {
	if _, err := schema.NormalizePagerConfig(cfg.SessionConfig()); err != nil {
		return fmt.Errorf("pager: %w", err)
	}
	if cfg.Pager.PageSize == 0 {
		return fmt.Errorf("%w: pager.page_size must be positive", schema.ErrInvalidConfig)
	}
	if cfg.Dispatch.PageLimit < 0 || cfg.Dispatch.Burst < 0 || cfg.Dispatch.RatePerSecond < 0 || cfg.Dispatch.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: dispatch settings must not be negative", schema.ErrInvalidConfig)
	}
	if cfg.Bus.Depth < 0 {
		return fmt.Errorf("%w: bus.depth must not be negative", schema.ErrInvalidConfig)
	}
	if _, err := localecmp.ParseTag(cfg.Locale); err != nil {
		return fmt.Errorf("%w: locale %q: %v", schema.ErrInvalidConfig, cfg.Locale, err)
	}
	return nil
}

// expandEnv expands a leading ~ and $VAR references. Unknown variables are
// left in place so a typo shows up in the resulting path.
func expandEnv(value string) string {
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = home + value[1:]
		}
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

// WriteDefault writes the default config to path (DefaultConfigPath when
// empty) and returns the path written. An existing file is kept unless
// overwrite is set.
func WriteDefault(path string, overwrite bool) (string, error) {
	path, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("encode default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("config already exists at %s", path)
	}
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(buf.String()); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
