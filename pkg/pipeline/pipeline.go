// Package pipeline ties parsing, storage, registry fetches and the freshness
// engine together. The CLI and the HTTP server both drive a [Runner].
//
// # Stages
//
//  1. Upload: sniff and parse a dependency list, persist it, return a token
//  2. Report: load a list, refresh stale package histories, annotate and
//     resolve every entry, rebuild the dependency tree
//  3. Package: the annotated history of a single package
//
// [Runner.Check] runs stages 1 and 2 in memory without persisting anything.
//
// # Usage
//
//	runner := pipeline.NewRunner(regs, st, fetchers, codec, logger)
//	up, err := runner.Upload(ctx, data, pipeline.UploadOptions{Hint: "poetry.lock"})
//	if err != nil {
//	    return err
//	}
//	report, err := runner.Report(ctx, up.ID)
package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/idcodec"
	"github.com/depreview/depreview/pkg/integrations"
	"github.com/depreview/depreview/pkg/registry"
	"github.com/depreview/depreview/pkg/store"
)

const (
	// DefaultRefreshAge is how long a stored package history is trusted
	// before it is fetched again.
	DefaultRefreshAge = 6 * time.Hour

	// DefaultWorkers bounds concurrent registry fetches per report.
	DefaultWorkers = 8
)

// Fetcher retrieves the release history of a package from its registry.
// When refresh is true any HTTP-level cache is bypassed.
type Fetcher interface {
	FetchHistory(ctx context.Context, name string, refresh bool) (*integrations.History, error)
}

// Runner executes pipeline stages against a store and a set of registries.
//
// A Runner holds no per-request state; one instance serves concurrent
// callers. Fields may be adjusted after NewRunner and before first use.
type Runner struct {
	Registries *registry.Set
	Store      store.Store
	Locker     store.Locker
	Fetchers   map[string]Fetcher
	Codec      *idcodec.Codec
	Logger     *log.Logger

	Policy     freshness.Policy
	RefreshAge time.Duration
	Workers    int

	// Overrides force version statuses, keyed by "registry/name" and then
	// by version.
	Overrides map[string]map[string]freshness.Status

	// Refresh refetches every history regardless of its age.
	Refresh bool

	Now func() time.Time
}

// NewRunner creates a runner with default policy and limits.
// If st is nil, a MemoryStore is used. The locker defaults to a MemoryLocker.
func NewRunner(regs *registry.Set, st store.Store, fetchers map[string]Fetcher, codec *idcodec.Codec, logger *log.Logger) *Runner {
	if st == nil {
		st = store.NewMemoryStore()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Registries: regs,
		Store:      st,
		Locker:     store.NewMemoryLocker(),
		Fetchers:   fetchers,
		Codec:      codec,
		Logger:     logger,
		Policy:     freshness.DefaultPolicy(),
		RefreshAge: DefaultRefreshAge,
		Workers:    DefaultWorkers,
		Now:        time.Now,
	}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) workers() int {
	if r.Workers <= 0 {
		return DefaultWorkers
	}
	return r.Workers
}

func (r *Runner) refreshAge() time.Duration {
	if r.RefreshAge <= 0 {
		return DefaultRefreshAge
	}
	return r.RefreshAge
}

func (r *Runner) annotate(reg registry.Registry, pkg *store.Package, now time.Time) []freshness.AnnotatedVersion {
	var opts []freshness.Option
	if r.Policy != (freshness.Policy{}) {
		opts = append(opts, freshness.WithPolicy(r.Policy))
	}
	if o := r.Overrides[pkg.Identity.String()]; len(o) > 0 {
		opts = append(opts, freshness.WithOverrides(o))
	}
	return freshness.Annotate(reg, pkg.History(), now, opts...)
}
