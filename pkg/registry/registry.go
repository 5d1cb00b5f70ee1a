// Package registry defines the capability interface every package ecosystem
// implements, together with the immutable [Set] of ecosystems known to a
// running process.
//
// # Overview
//
// The manifest parsers, the freshness engine and the tree builder never refer
// to a concrete ecosystem. They receive a [Registry] and use it to normalize
// names, order versions, recognize prereleases, evaluate constraints and build
// links for display:
//
//	regs := registry.NewSet(registry.NewPyPI(), registry.NewGo())
//	py, err := regs.Get("pypi")
//	py.Normalize("Flask_SQLAlchemy") // "flask-sqlalchemy"
//
// # Constraints
//
// Constraints are comma-joined AND clauses such as ">=1.2,<2.0.0". The empty
// constraint matches every version. [Satisfies] evaluates a constraint with
// any comparison function, so each ecosystem only supplies its ordering.
package registry

import (
	"sort"
	"strings"
	"time"

	"github.com/depreview/depreview/pkg/errors"
)

// Registry is the set of ecosystem-specific rules the rest of the module
// relies on. Implementations must be safe for concurrent use.
type Registry interface {
	// Name is the stable identifier used in storage and URLs (e.g. "pypi").
	Name() string

	// Normalize returns the canonical form of a package name. It must be
	// idempotent: Normalize(Normalize(x)) == Normalize(x).
	Normalize(name string) string

	// ValidateName rejects names that can never exist in the registry.
	ValidateName(name string) error

	// Compare orders two versions, returning -1, 0 or +1.
	Compare(a, b string) int

	// IsPrerelease reports whether v is a development or preview release.
	IsPrerelease(v string) bool

	// Matches reports whether v satisfies constraint.
	Matches(v, constraint string) bool

	// Link returns a human-facing URL for the package.
	Link(name string) string

	// PURLType is the package-url type for the ecosystem.
	PURLType() string
}

// Identity names one package within one registry. Name is always normalized.
type Identity struct {
	Registry string `json:"registry" bson:"registry"`
	Name     string `json:"name" bson:"name"`
}

// String returns "registry/name".
func (id Identity) String() string {
	return id.Registry + "/" + id.Name
}

// Version is one release of a package.
//
// A recorded version is immutable except that Yanked may flip from false to
// true; it is never cleared again.
type Version struct {
	Version     string     `json:"version" bson:"version"`
	ReleaseDate *time.Time `json:"release_date,omitempty" bson:"release_date,omitempty"`
	Yanked      bool       `json:"yanked" bson:"yanked"`
}

// Set is an immutable lookup table of registries keyed by name.
type Set struct {
	byName map[string]Registry
	names  []string
}

// NewSet builds a Set from regs. Later registries with a duplicate name
// replace earlier ones.
func NewSet(regs ...Registry) *Set {
	s := &Set{byName: make(map[string]Registry, len(regs))}
	for _, r := range regs {
		s.byName[r.Name()] = r
	}
	for name := range s.byName {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s
}

// Get returns the registry called name.
func (s *Set) Get(name string) (Registry, error) {
	if r, ok := s.byName[strings.ToLower(name)]; ok {
		return r, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidRegistry,
		"unknown registry %q (available: %s)", name, strings.Join(s.names, ", "))
}

// MustGet is like Get but panics when the registry is missing. It is meant
// for wiring code where the name is a compile-time constant.
func (s *Set) MustGet(name string) Registry {
	r, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return r
}

// Names returns the registry names in sorted order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Identity validates and normalizes name for the registry called reg.
func (s *Set) Identity(reg, name string) (Identity, error) {
	r, err := s.Get(reg)
	if err != nil {
		return Identity{}, err
	}
	if err := r.ValidateName(name); err != nil {
		return Identity{}, err
	}
	return Identity{Registry: r.Name(), Name: r.Normalize(name)}, nil
}

// SortVersions orders versions newest first using r.
func SortVersions(r Registry, versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		return r.Compare(versions[i].Version, versions[j].Version) > 0
	})
}
