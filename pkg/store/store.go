package store

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/registry"
)

// List is one uploaded dependency list.
type List struct {
	ID        uint64           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Registry  string           `json:"registry"`
	Format    manifest.Format  `json:"format"`
	Entries   []manifest.Entry `json:"entries"`
}

// Package is the stored metadata and release history of one package.
type Package struct {
	registry.Identity
	OrigName    string                      `json:"orig_name"`
	Author      string                      `json:"author,omitempty"`
	Description string                      `json:"description,omitempty"`
	Repository  string                      `json:"repository,omitempty"`
	LastRefresh time.Time                   `json:"last_refresh"`
	Versions    map[string]registry.Version `json:"versions"`
}

// History returns the versions of p in no particular order.
func (p *Package) History() []registry.Version {
	out := make([]registry.Version, 0, len(p.Versions))
	for _, v := range p.Versions {
		out = append(out, v)
	}
	return out
}

// Stale reports whether p was last refreshed more than maxAge before now.
func (p *Package) Stale(now time.Time, maxAge time.Duration) bool {
	return p.LastRefresh.IsZero() || now.Sub(p.LastRefresh) > maxAge
}

// Store is the persistence surface. Implementations must be safe for
// concurrent use.
type Store interface {
	// CreateList stores a new list and assigns its id.
	CreateList(ctx context.Context, reg string, format manifest.Format, entries []manifest.Entry) (*List, error)

	// GetList returns a list or an ErrCodeNotFound error.
	GetList(ctx context.Context, id uint64) (*List, error)

	// GetPackage returns a package or an ErrCodePackageNotFound error.
	GetPackage(ctx context.Context, id registry.Identity) (*Package, error)

	// PutPackage upserts the package metadata and merges its versions into
	// the stored history with MergeVersions.
	PutPackage(ctx context.Context, p *Package) error

	Close() error
}

// Locker serializes work on one key across goroutines or processes.
type Locker interface {
	// Lock blocks until key is held or ctx ends. The returned func releases
	// the lock and may be called more than once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MergeVersions folds incoming into existing and returns the result.
// Unknown versions are added. Known versions keep their recorded release
// date; Yanked becomes true if either side is yanked.
func MergeVersions(existing map[string]registry.Version, incoming map[string]registry.Version) map[string]registry.Version {
	out := make(map[string]registry.Version, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		old, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		if v.Yanked && !old.Yanked {
			old.Yanked = true
		}
		if old.ReleaseDate == nil && v.ReleaseDate != nil {
			old.ReleaseDate = v.ReleaseDate
		}
		out[k] = old
	}
	return out
}

// VersionMap indexes versions by their version string.
func VersionMap(versions []registry.Version) map[string]registry.Version {
	m := make(map[string]registry.Version, len(versions))
	for _, v := range versions {
		m[v.Version] = v
	}
	return m
}

func listNotFound(id uint64) error {
	return errors.New(errors.ErrCodeNotFound, "list %d not found", id)
}

func packageNotFound(id registry.Identity) error {
	return errors.New(errors.ErrCodePackageNotFound, "package %s not found", id)
}

// Open returns the store for rawURL. An empty URL or "memory:" selects a
// MemoryStore; postgres:// and postgresql:// an SQLStore; mongodb:// and
// mongodb+srv:// a MongoStore.
func Open(ctx context.Context, rawURL string) (Store, error) {
	if rawURL == "" || rawURL == "memory:" {
		return NewMemoryStore(), nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid database url")
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return OpenSQL(ctx, rawURL)
	case "mongodb", "mongodb+srv":
		db := strings.Trim(u.Path, "/")
		if db == "" {
			db = defaultMongoDatabase
		}
		return OpenMongo(ctx, rawURL, db)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unsupported database url scheme %q", u.Scheme)
}
