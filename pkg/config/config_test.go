package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/freshness"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	cfg, err := LoadFrom("", env(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.MinAge.D() != 30*day || cfg.MaxAge.D() != 91*day {
		t.Errorf("ages = %s, %s", cfg.MinAge, cfg.MaxAge)
	}
	if cfg.RefreshAge.D() != 6*time.Hour {
		t.Errorf("RefreshAge = %s, want 6h", cfg.RefreshAge)
	}
	if cfg.Listen != ":8080" || cfg.Workers != 8 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFrom_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depreview.toml")
	err := os.WriteFile(path, []byte(`
listen = ":9000"
secret = "from-file"
database_url = "postgres://localhost/depreview"
min_age = "14d"
max_age = "60d"
refresh_age = "2h"
workers = 4
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path, env(map[string]string{
		"DEPREVIEW_SECRET":       "from-env",
		"REDIS_URL":              "redis://localhost:6379/0",
		"DEPREVIEW_WORKERS":      "2",
		"DEPREVIEW_CACHE_PREFIX": "staging:",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"listen", cfg.Listen, ":9000"},
		{"secret", cfg.Secret, "from-env"},
		{"database", cfg.DatabaseURL, "postgres://localhost/depreview"},
		{"redis", cfg.RedisURL, "redis://localhost:6379/0"},
		{"cache prefix", cfg.CachePrefix, "staging:"},
		{"min age", cfg.MinAge.D(), 14 * day},
		{"max age", cfg.MaxAge.D(), 60 * day},
		{"refresh", cfg.RefreshAge.D(), 2 * time.Hour},
		{"workers", cfg.Workers, 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadFrom_ConfigEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	if err := os.WriteFile(path, []byte(`listen = ":1234"`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom("", env(map[string]string{"DEPREVIEW_CONFIG": path}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":1234" {
		t.Errorf("Listen = %s", cfg.Listen)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"bad duration", map[string]string{"DEPREVIEW_MIN_AGE": "soon"}, ""},
		{"bad workers", map[string]string{"DEPREVIEW_WORKERS": "many"}, ""},
		{"zero workers", map[string]string{"DEPREVIEW_WORKERS": "0"}, ""},
		{"min above max", map[string]string{"DEPREVIEW_MIN_AGE": "100d"}, ""},
		{"missing file", nil, "does-not-exist.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.file
			if path != "" {
				path = filepath.Join(t.TempDir(), path)
			}
			_, err := LoadFrom(path, env(tt.env))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("LoadFrom() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		str  string
	}{
		{"30d", 30 * day, "30d"},
		{"6h", 6 * time.Hour, "6h0m0s"},
		{"48h", 2 * day, "2d"},
		{"90m", 90 * time.Minute, "1h30m0s"},
	}
	for _, tt := range tests {
		var d Duration
		if err := d.UnmarshalText([]byte(tt.in)); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", tt.in, err)
		}
		if d.D() != tt.want {
			t.Errorf("UnmarshalText(%q) = %s, want %s", tt.in, d.D(), tt.want)
		}
		if d.String() != tt.str {
			t.Errorf("String() = %s, want %s", d.String(), tt.str)
		}
	}
}

func TestOverrides(t *testing.T) {
	write := func(t *testing.T, doc string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "o.toml")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	cfg, err := LoadFrom(write(t, `
[overrides."pypi/flask"]
"2.0.0" = "ok"
"1.0" = "yanked"
`), env(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	got := cfg.StatusOverrides()
	if got["pypi/flask"]["2.0.0"] != freshness.StatusOK || got["pypi/flask"]["1.0"] != freshness.StatusYanked {
		t.Errorf("StatusOverrides() = %v", got)
	}

	for name, doc := range map[string]string{
		"bad status": "[overrides.\"pypi/flask\"]\n\"1.0\" = \"fine\"\n",
		"bad key":    "[overrides.flask]\n\"1.0\" = \"ok\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFrom(write(t, doc), env(nil)); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("LoadFrom() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestPolicy(t *testing.T) {
	cfg := Default()
	p := cfg.Policy()
	if p != freshness.DefaultPolicy() {
		t.Errorf("Policy() = %+v, want %+v", p, freshness.DefaultPolicy())
	}
}
