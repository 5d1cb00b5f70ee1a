// Package integrations provides HTTP clients for package registry APIs.
//
// Each registry has its own subpackage:
//
//   - [pypi]: Python Package Index JSON API
//   - [goproxy]: Go module proxy protocol
//
// Both return a [History]: the registry's spelling of the package name, its
// metadata, and every known release with its date and yank state.
//
//	client := pypi.NewClient(backend, 6*time.Hour)
//	h, err := client.FetchHistory(ctx, "Flask", false) // false = use cache
//
// # Shared Infrastructure
//
// [Client] carries what every registry client needs: JSON GETs, response
// caching through [cache.Cache], retries with exponential backoff for
// transient failures, a circuit breaker per upstream host, and a transport
// that caches DNS lookups.
//
// [pypi]: github.com/depreview/depreview/pkg/integrations/pypi
// [goproxy]: github.com/depreview/depreview/pkg/integrations/goproxy
// [cache.Cache]: github.com/depreview/depreview/pkg/cache.Cache
package integrations
