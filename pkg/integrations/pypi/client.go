package pypi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/depreview/depreview/pkg/cache"
	"github.com/depreview/depreview/pkg/integrations"
	"github.com/depreview/depreview/pkg/registry"
)

// Client provides access to the PyPI JSON API.
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
	norm    *registry.PyPI
}

// NewClient creates a PyPI client caching responses in backend for cacheTTL.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "pypi:", cacheTTL, nil),
		baseURL: "https://pypi.org/pypi",
		norm:    registry.NewPyPI(),
	}
}

// FetchHistory retrieves the release history of a Python package.
//
// The name is normalized following PEP 503 before the request. If refresh is
// true the cache is bypassed.
//
// Returns [integrations.ErrNotFound] if the package doesn't exist and
// [integrations.ErrNetwork] for HTTP failures.
func (c *Client) FetchHistory(ctx context.Context, name string, refresh bool) (*integrations.History, error) {
	name = c.norm.Normalize(name)

	var h integrations.History
	err := c.Cached(ctx, name, refresh, &h, func() error {
		return c.fetch(ctx, name, &h)
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) fetch(ctx context.Context, name string, h *integrations.History) error {
	var data apiResponse
	if err := c.Get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, integrations.URLEncode(name)), &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: pypi package %s", err, name)
		}
		return err
	}

	*h = integrations.History{
		Name:        data.Info.Name,
		Author:      data.Info.Author,
		Description: data.Info.Summary,
		Repository:  integrations.RepositoryURL(data.Info.ProjectURLs, data.Info.HomePage),
		Versions:    releases(data.Releases),
	}
	if h.Name == "" {
		h.Name = name
	}
	return nil
}

// releases converts the per-version file lists into versions, sorted by
// version string for stable cache contents.
func releases(files map[string][]apiFile) []registry.Version {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []registry.Version
	for _, v := range keys {
		builds := files[v]
		if len(builds) == 0 || !registry.ValidPEP440(v) {
			continue
		}
		out = append(out, release(v, builds))
	}
	return out
}

func release(v string, builds []apiFile) registry.Version {
	rv := registry.Version{Version: v, Yanked: true}
	for _, b := range builds {
		if t, ok := b.uploaded(); ok && (rv.ReleaseDate == nil || t.Before(*rv.ReleaseDate)) {
			rv.ReleaseDate = &t
		}
		if !b.Yanked {
			rv.Yanked = false
		}
	}
	return rv
}

type apiResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
}

type apiInfo struct {
	Name        string            `json:"name"`
	Summary     string            `json:"summary"`
	Author      string            `json:"author"`
	HomePage    string            `json:"home_page"`
	ProjectURLs map[string]string `json:"project_urls"`
}

type apiFile struct {
	UploadTimeISO string `json:"upload_time_iso_8601"`
	UploadTime    string `json:"upload_time"`
	Yanked        bool   `json:"yanked"`
}

// uploaded returns the upload time of the file in UTC. The legacy
// upload_time field has no zone and is UTC.
func (f apiFile) uploaded() (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, f.UploadTimeISO); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", f.UploadTime); err == nil {
		return t, true
	}
	return time.Time{}, false
}
