package goproxy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	"github.com/depreview/depreview/pkg/cache"
	"github.com/depreview/depreview/pkg/integrations"
	"github.com/depreview/depreview/pkg/registry"
)

// infoWorkers bounds concurrent .info requests for one module.
const infoWorkers = 8

// Client provides access to the Go module proxy protocol.
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a module proxy client caching responses in backend for
// cacheTTL.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "goproxy:", cacheTTL, nil),
		baseURL: "https://proxy.golang.org",
	}
}

// FetchHistory retrieves the tagged versions of a module with their commit
// times. If refresh is true the cache is bypassed.
//
// Returns [integrations.ErrNotFound] if the module doesn't exist.
func (c *Client) FetchHistory(ctx context.Context, mod string, refresh bool) (*integrations.History, error) {
	mod = strings.TrimSpace(mod)
	escaped, err := module.EscapePath(mod)
	if err != nil {
		return nil, fmt.Errorf("%w: go module %s: %v", integrations.ErrNotFound, mod, err)
	}

	var h integrations.History
	err = c.Cached(ctx, mod, refresh, &h, func() error {
		return c.fetch(ctx, mod, escaped, &h)
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) fetch(ctx context.Context, mod, escaped string, h *integrations.History) error {
	body, err := c.GetText(ctx, fmt.Sprintf("%s/%s/@v/list", c.baseURL, escaped))
	if err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: go module %s", err, mod)
		}
		return err
	}
	list := parseList(body)

	versions := make([]registry.Version, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(infoWorkers)
	for i, v := range list {
		g.Go(func() error {
			info, err := c.fetchInfo(gctx, escaped, v)
			if err != nil {
				return err
			}
			versions[i] = registry.Version{Version: v}
			if t, err := time.Parse(time.RFC3339, info.Time); err == nil {
				t = t.UTC()
				versions[i].ReleaseDate = &t
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(list) > 0 {
		latest := list[len(list)-1]
		if retracted, err := c.fetchRetractions(ctx, escaped, latest); err == nil {
			for i := range versions {
				versions[i].Yanked = retracted(versions[i].Version)
			}
		}
	}

	*h = integrations.History{
		Name:       mod,
		Repository: repositoryURL(mod),
		Versions:   versions,
	}
	return nil
}

func (c *Client) fetchInfo(ctx context.Context, escaped, version string) (*infoResponse, error) {
	ev, err := module.EscapeVersion(version)
	if err != nil {
		return nil, err
	}
	var info infoResponse
	if err := c.Get(ctx, fmt.Sprintf("%s/%s/@v/%s.info", c.baseURL, escaped, ev), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// fetchRetractions reads the go.mod of version and returns a predicate for
// the versions it retracts.
func (c *Client) fetchRetractions(ctx context.Context, escaped, version string) (func(string) bool, error) {
	ev, err := module.EscapeVersion(version)
	if err != nil {
		return nil, err
	}
	body, err := c.GetText(ctx, fmt.Sprintf("%s/%s/@v/%s.mod", c.baseURL, escaped, ev))
	if err != nil {
		return nil, err
	}
	f, err := modfile.ParseLax("go.mod", []byte(body), nil)
	if err != nil {
		return nil, err
	}
	return func(v string) bool {
		for _, r := range f.Retract {
			if semver.Compare(v, r.Low) >= 0 && semver.Compare(v, r.High) <= 0 {
				return true
			}
		}
		return false
	}, nil
}

// parseList returns the valid semantic versions in a /@v/list body, sorted
// oldest first.
func parseList(body string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(body, "\n") {
		v := strings.TrimSpace(line)
		if v == "" || seen[v] || !semver.IsValid(v) {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return semver.Compare(out[i], out[j]) < 0 })
	return out
}

// repositoryURL derives the repository for modules hosted on a known forge.
func repositoryURL(mod string) string {
	parts := strings.Split(mod, "/")
	if len(parts) < 3 {
		return ""
	}
	switch parts[0] {
	case "github.com", "gitlab.com", "codeberg.org":
		return "https://" + strings.Join(parts[:3], "/")
	}
	return ""
}

type infoResponse struct {
	Version string `json:"Version"`
	Time    string `json:"Time"`
}
