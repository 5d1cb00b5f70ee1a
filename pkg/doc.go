// Package pkg provides the core libraries of depreview.
//
// # Overview
//
// depreview reads a dependency list, looks up the release history of every
// package in it and classifies each pinned version as ok, outdated, very
// outdated or yanked. The pkg directory is organized into four areas:
//
//  1. Domain logic: [registry], [manifest], [freshness], [tree]
//  2. Infrastructure: [cache], [store], [config], [idcodec]
//  3. External API clients: [integrations] with pypi and goproxy
//  4. Orchestration and output: [pipeline], [render]
//
// # Architecture
//
// The typical data flow:
//
//	dependency file (poetry.lock, pyproject.toml, requirements, go.mod)
//	         ↓
//	    [manifest] package (detect format, parse entries)
//	         ↓
//	    [store] package (persist the list, read cached histories)
//	         ↓
//	    [integrations] (refresh stale histories from the registry)
//	         ↓
//	    [freshness] package (annotate versions, match requirements)
//	         ↓
//	    [tree] package (rebuild the dependency tree)
//	         ↓
//	    JSON report, text table, DOT/SVG/PNG/PDF graph
//
// # Quick Start
//
// Evaluate a file without persisting it:
//
//	regs := registry.NewSet(registry.NewPyPI(), registry.NewGo())
//	fetchers := map[string]pipeline.Fetcher{
//	    "pypi": pypi.NewClient(cache.NewNullCache(), time.Hour),
//	}
//	runner := pipeline.NewRunner(regs, nil, fetchers, nil, log.Default())
//	report, err := runner.Check(ctx, data, pipeline.CheckOptions{})
//
// # Error Handling
//
// Errors carry a code from [errors]; [errors.IsUserError] separates bad
// input from upstream and internal failures.
//
// [registry]: github.com/depreview/depreview/pkg/registry
// [manifest]: github.com/depreview/depreview/pkg/manifest
// [freshness]: github.com/depreview/depreview/pkg/freshness
// [tree]: github.com/depreview/depreview/pkg/tree
// [cache]: github.com/depreview/depreview/pkg/cache
// [store]: github.com/depreview/depreview/pkg/store
// [config]: github.com/depreview/depreview/pkg/config
// [idcodec]: github.com/depreview/depreview/pkg/idcodec
// [integrations]: github.com/depreview/depreview/pkg/integrations
// [pipeline]: github.com/depreview/depreview/pkg/pipeline
// [render]: github.com/depreview/depreview/pkg/render
// [errors]: github.com/depreview/depreview/pkg/errors
// [errors.IsUserError]: github.com/depreview/depreview/pkg/errors#IsUserError
package pkg
