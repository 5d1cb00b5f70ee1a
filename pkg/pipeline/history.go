package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/integrations"
	"github.com/depreview/depreview/pkg/observability"
	"github.com/depreview/depreview/pkg/registry"
	"github.com/depreview/depreview/pkg/store"
)

// histories loads the stored history of every name, refreshing stale ones.
// Per-package failures are returned in the second map rather than failing
// the batch; only context cancellation aborts it.
func (r *Runner) histories(ctx context.Context, reg registry.Registry, names []string) (map[string]*store.Package, map[string]error, error) {
	var (
		mu   sync.Mutex
		pkgs = make(map[string]*store.Package, len(names))
		errs = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for _, name := range names {
		g.Go(func() error {
			pkg, err := r.ensurePackage(gctx, reg, name)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[name] = err
				return nil
			}
			pkgs[name] = pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return pkgs, errs, nil
}

// ensurePackage returns the stored history for name, fetching it from the
// registry when it is missing or older than the refresh age. Fetches for the
// same package are serialized through the Locker so concurrent reports hit
// the registry once.
func (r *Runner) ensurePackage(ctx context.Context, reg registry.Registry, name string) (*store.Package, error) {
	id := registry.Identity{Registry: reg.Name(), Name: name}

	cached, err := r.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached != nil && !r.Refresh {
		return cached, nil
	}

	fetcher, ok := r.Fetchers[reg.Name()]
	if !ok {
		if stale, _ := r.Store.GetPackage(ctx, id); stale != nil {
			return stale, nil
		}
		return nil, errors.New(errors.ErrCodeUnsupported, "no fetcher configured for registry %s", reg.Name())
	}

	unlock, err := r.Locker.Lock(ctx, "package:"+id.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another worker may have refreshed it while we waited.
	if !r.Refresh {
		if cached, err := r.fresh(ctx, id); err != nil || cached != nil {
			return cached, err
		}
	}

	start := time.Now()
	observability.Pipeline().OnFetchStart(ctx, id.Registry, id.Name)
	h, err := fetcher.FetchHistory(ctx, name, r.Refresh)
	count := 0
	if h != nil {
		count = len(h.Versions)
	}
	observability.Pipeline().OnFetchComplete(ctx, id.Registry, id.Name, count, time.Since(start), err)

	if err != nil {
		if stale, _ := r.Store.GetPackage(ctx, id); stale != nil && ctx.Err() == nil {
			r.Logger.Warn("using stale history", "package", id, "error", err)
			return stale, nil
		}
		if stderrors.Is(err, integrations.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrCodePackageNotFound, err, "%s not found on %s", name, reg.Name())
		}
		if stderrors.Is(err, integrations.ErrRateLimited) {
			return nil, errors.Wrap(errors.ErrCodeRateLimited, err, "fetch %s", id)
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", id)
	}

	r.Logger.Debug("fetched history", "package", id, "versions", count, "duration", time.Since(start))

	pkg := &store.Package{
		Identity:    id,
		OrigName:    h.Name,
		Author:      h.Author,
		Description: h.Description,
		Repository:  h.Repository,
		LastRefresh: r.now(),
		Versions:    store.VersionMap(h.Versions),
	}
	if pkg.OrigName == "" {
		pkg.OrigName = name
	}
	if err := r.Store.PutPackage(ctx, pkg); err != nil {
		return nil, err
	}
	return r.Store.GetPackage(ctx, id)
}

// fresh returns the stored package if it is within the refresh age, nil if
// it is missing or stale.
func (r *Runner) fresh(ctx context.Context, id registry.Identity) (*store.Package, error) {
	pkg, err := r.Store.GetPackage(ctx, id)
	if errors.Is(err, errors.ErrCodePackageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pkg.Stale(r.now(), r.refreshAge()) {
		return nil, nil
	}
	return pkg, nil
}
