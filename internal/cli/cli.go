// Package cli implements the depreview command-line interface.
//
// # Commands
//
//   - check: evaluate a dependency file and print a freshness report
//   - package: show the annotated release history of one package
//   - id: encode or decode list tokens
//   - serve: run the HTTP API
//   - cache: manage the HTTP response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// is attached to the command context and read back with loggerFromContext.
package cli

import (
	"context"
	"io"
	"maps"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/depreview/depreview/pkg/buildinfo"
	"github.com/depreview/depreview/pkg/cache"
	"github.com/depreview/depreview/pkg/config"
	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/idcodec"
	"github.com/depreview/depreview/pkg/integrations/goproxy"
	"github.com/depreview/depreview/pkg/integrations/pypi"
	"github.com/depreview/depreview/pkg/pipeline"
	"github.com/depreview/depreview/pkg/registry"
	"github.com/depreview/depreview/pkg/store"
)

// appName is the application name used for directories and display.
const appName = "depreview"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives command output; Err receives progress output.
	Out io.Writer
	Err io.Writer

	// Fetchers replaces the registry clients when set.
	Fetchers map[string]pipeline.Fetcher

	// Getenv replaces os.Getenv for configuration lookups when set.
	Getenv func(string) string

	configPath string
	verbose    bool
	cfg        *config.Config
}

// New creates a CLI logging to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "depreview reports how far behind your dependencies are",
		Long: `depreview reads a dependency list (poetry.lock, pyproject.toml, a pinned
requirements file or go.mod), looks up every package's release history and
marks each pinned version as ok, outdated, very outdated or yanked.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(withLogger(ctx, c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.Out)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "TOML config file (default $DEPREVIEW_CONFIG)")

	root.AddCommand(c.checkCommand())
	root.AddCommand(c.packageCommand())
	root.AddCommand(c.idCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads settings once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if c.Getenv != nil {
		cfg, err = config.LoadFrom(c.configPath, c.Getenv)
	} else {
		cfg, err = config.Load(c.configPath)
	}
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func registries() *registry.Set {
	return registry.NewSet(registry.NewPyPI(), registry.NewGo())
}

func (c *CLI) codec(cfg *config.Config) (*idcodec.Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no token secret configured (set DEPREVIEW_SECRET)")
	}
	return idcodec.New([]byte(cfg.Secret))
}

// localCache returns the per-user file cache, or a NullCache when noCache
// is set.
func localCache(cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir(cfg)
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the configured cache directory or the XDG default.
func cacheDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.CacheDir != "" {
		return cfg.CacheDir, nil
	}
	return cache.DefaultDir()
}

// registryClients returns the fetchers for every registry and a function
// reporting their circuit breaker states.
func (c *CLI) registryClients(cfg *config.Config, backend cache.Cache) (map[string]pipeline.Fetcher, func() map[string]string) {
	if c.Fetchers != nil {
		return c.Fetchers, nil
	}
	py := pypi.NewClient(backend, cfg.CacheTTL.D())
	gp := goproxy.NewClient(backend, cfg.CacheTTL.D())
	if cfg.CachePrefix != "" {
		keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), cfg.CachePrefix)
		py.WithKeyer(keyer)
		gp.WithKeyer(keyer)
	}
	fetchers := map[string]pipeline.Fetcher{
		"pypi":   py,
		"golang": gp,
	}
	states := func() map[string]string {
		out := py.Breakers().State()
		maps.Copy(out, gp.Breakers().State())
		return out
	}
	return fetchers, states
}

// newRunner builds a runner over st with settings from cfg.
func (c *CLI) newRunner(cfg *config.Config, st store.Store, backend cache.Cache) (*pipeline.Runner, func() map[string]string) {
	fetchers, breakers := c.registryClients(cfg, backend)
	r := pipeline.NewRunner(registries(), st, fetchers, nil, c.Logger)
	r.Policy = cfg.Policy()
	r.RefreshAge = cfg.RefreshAge.D()
	r.Workers = cfg.Workers
	r.Overrides = cfg.StatusOverrides()
	return r, breakers
}

// localRunner is newRunner over an in-memory store and the local cache.
func (c *CLI) localRunner(noCache bool) (*pipeline.Runner, func(), error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	backend, err := localCache(cfg, noCache)
	if err != nil {
		return nil, nil, err
	}
	r, _ := c.newRunner(cfg, store.NewMemoryStore(), backend)
	return r, func() { _ = backend.Close() }, nil
}
