// Package config loads runtime settings for the CLI and server.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file (--config or DEPREVIEW_CONFIG)
//  3. environment variables, after loading a .env file if one exists
//
// Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/freshness"
)

const day = 24 * time.Hour

// Config holds every tunable setting.
type Config struct {
	Listen      string   `toml:"listen"`
	Secret      string   `toml:"secret"`
	DatabaseURL string   `toml:"database_url"`
	RedisURL    string   `toml:"redis_url"`
	CachePrefix string   `toml:"cache_prefix"`
	CacheDir    string   `toml:"cache_dir"`
	CacheTTL    Duration `toml:"cache_ttl"`
	RefreshAge  Duration `toml:"refresh_age"`
	MinAge      Duration `toml:"min_age"`
	MaxAge      Duration `toml:"max_age"`
	Workers     int      `toml:"workers"`

	// Overrides force the status of specific versions, keyed by
	// "registry/name" and then by version:
	//
	//	[overrides."pypi/flask"]
	//	"2.0.0" = "ok"
	Overrides map[string]map[string]string `toml:"overrides"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen:     ":8080",
		CacheTTL:   Duration(time.Hour),
		RefreshAge: Duration(6 * time.Hour),
		MinAge:     Duration(30 * day),
		MaxAge:     Duration(91 * day),
		Workers:    8,
	}
}

// Load reads .env, the optional TOML file at path and the process
// environment. An empty path falls back to DEPREVIEW_CONFIG; if that is
// also empty no file is read.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(path, os.Getenv)
}

// LoadFrom is Load with an explicit environment lookup and no .env file.
func LoadFrom(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getenv("DEPREVIEW_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"DEPREVIEW_LISTEN":       &c.Listen,
		"DEPREVIEW_SECRET":       &c.Secret,
		"DATABASE_URL":           &c.DatabaseURL,
		"REDIS_URL":              &c.RedisURL,
		"DEPREVIEW_CACHE_DIR":    &c.CacheDir,
		"DEPREVIEW_CACHE_PREFIX": &c.CachePrefix,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	durs := map[string]*Duration{
		"DEPREVIEW_CACHE_TTL":   &c.CacheTTL,
		"DEPREVIEW_REFRESH_AGE": &c.RefreshAge,
		"DEPREVIEW_MIN_AGE":     &c.MinAge,
		"DEPREVIEW_MAX_AGE":     &c.MaxAge,
	}
	for key, dst := range durs {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", key)
			}
		}
	}

	if v := strings.TrimSpace(getenv("DEPREVIEW_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "DEPREVIEW_WORKERS")
		}
		c.Workers = n
	}
	return nil
}

// Validate checks ranges and the relation between the age thresholds.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "workers must be at least 1, got %d", c.Workers)
	case c.MinAge <= 0 || c.MaxAge <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "min_age and max_age must be positive")
	case c.MinAge > c.MaxAge:
		return errors.New(errors.ErrCodeInvalidConfig, "min_age (%s) exceeds max_age (%s)", c.MinAge, c.MaxAge)
	case c.RefreshAge < 0 || c.CacheTTL < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "refresh_age and cache_ttl cannot be negative")
	}
	for pkg, versions := range c.Overrides {
		if !strings.Contains(pkg, "/") {
			return errors.New(errors.ErrCodeInvalidConfig, "override key %q must be registry/name", pkg)
		}
		for v, s := range versions {
			if !freshness.Status(s).Valid() {
				return errors.New(errors.ErrCodeInvalidConfig, "override %s %s: unknown status %q", pkg, v, s)
			}
		}
	}
	return nil
}

// StatusOverrides returns Overrides typed for the freshness engine.
func (c *Config) StatusOverrides() map[string]map[string]freshness.Status {
	if len(c.Overrides) == 0 {
		return nil
	}
	out := make(map[string]map[string]freshness.Status, len(c.Overrides))
	for pkg, versions := range c.Overrides {
		m := make(map[string]freshness.Status, len(versions))
		for v, s := range versions {
			m[v] = freshness.Status(s)
		}
		out[pkg] = m
	}
	return out
}

// Policy returns the freshness thresholds.
func (c *Config) Policy() freshness.Policy {
	return freshness.Policy{MinAge: c.MinAge.D(), MaxAge: c.MaxAge.D()}
}

// Duration is a time.Duration that also accepts a whole number of days
// such as "30d".
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string {
	td := time.Duration(d)
	if td > 0 && td%day == 0 {
		return fmt.Sprintf("%dd", td/day)
	}
	return td.String()
}

// UnmarshalText parses "30d" or any time.ParseDuration string.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil {
			return fmt.Errorf("invalid duration %q", s)
		}
		*d = Duration(time.Duration(days) * day)
		return nil
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
