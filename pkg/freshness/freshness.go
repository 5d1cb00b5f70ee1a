// Package freshness classifies the versions of a package as current or stale.
//
// Staleness is measured against how long a newer release has been available,
// not against the age of the version itself: a version whose successor was
// published yesterday is still fine, and a package with no newer release is
// never outdated.
//
//	annotated := freshness.Annotate(reg, versions, time.Now())
//	for _, v := range annotated {
//	    fmt.Println(v.Version, v.Status, v.Message)
//	}
//
// Results depend on the wall clock and are never cached.
package freshness

import (
	"time"

	"github.com/depreview/depreview/pkg/registry"
)

// Default thresholds.
const (
	DefaultMinAge = 30 * 24 * time.Hour
	DefaultMaxAge = 91 * 24 * time.Hour
)

// Status is the freshness classification of a version.
type Status string

const (
	StatusOK           Status = "ok"
	StatusOutdated     Status = "outdated"
	StatusVeryOutdated Status = "very-outdated"
	StatusYanked       Status = "yanked"
)

// Severity orders statuses from best (0) to worst.
func (s Status) Severity() int {
	switch s {
	case StatusOutdated:
		return 1
	case StatusVeryOutdated:
		return 2
	case StatusYanked:
		return 3
	}
	return 0
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusOutdated, StatusVeryOutdated, StatusYanked:
		return true
	}
	return false
}

// AnnotatedVersion is a version with its classification.
type AnnotatedVersion struct {
	registry.Version
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Policy holds the age thresholds. A newer release older than MinAge makes a
// version outdated; older than MaxAge makes it very outdated.
type Policy struct {
	MinAge time.Duration
	MaxAge time.Duration
}

// DefaultPolicy returns the 30 and 91 day thresholds.
func DefaultPolicy() Policy {
	return Policy{MinAge: DefaultMinAge, MaxAge: DefaultMaxAge}
}

type options struct {
	policy    Policy
	overrides map[string]Status
}

// Option configures Annotate.
type Option func(*options)

// WithPolicy replaces the default thresholds.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithOverrides forces the status of specific versions. Yanked versions stay
// yanked regardless of overrides, and overrides with an unknown status are
// ignored.
func WithOverrides(overrides map[string]Status) Option {
	return func(o *options) { o.overrides = overrides }
}

// Annotate sorts versions newest first and classifies each one:
//
//  1. yanked versions are yanked;
//  2. otherwise, if the next newer version was released at least MinAge
//     before now, the version is outdated, or very outdated when that newer
//     release is at least MaxAge old; the message gives the version's own age;
//  3. otherwise the version is ok.
//
// Versions without a release date never make an older version outdated.
// The input slice is not modified.
func Annotate(reg registry.Registry, versions []registry.Version, now time.Time, opts ...Option) []AnnotatedVersion {
	o := options{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	sorted := append([]registry.Version(nil), versions...)
	registry.SortVersions(reg, sorted)

	out := make([]AnnotatedVersion, 0, len(sorted))
	var next *registry.Version
	for i := range sorted {
		v := sorted[i]
		av := AnnotatedVersion{Version: v, Status: StatusOK}

		switch {
		case v.Yanked:
			av.Status = StatusYanked
			av.Message = yankedMessage
		case next != nil && next.ReleaseDate != nil && now.Sub(*next.ReleaseDate) >= o.policy.MinAge:
			av.Status = StatusOutdated
			if now.Sub(*next.ReleaseDate) >= o.policy.MaxAge {
				av.Status = StatusVeryOutdated
			}
			av.Message = outOfDate(v, now)
		}

		if s, ok := o.overrides[v.Version]; ok && s.Valid() && !v.Yanked {
			av.Status = s
			switch s {
			case StatusOK:
				av.Message = ""
			case StatusYanked:
				av.Message = yankedMessage
			default:
				av.Message = outOfDate(v, now)
			}
		}

		out = append(out, av)
		next = &sorted[i]
	}
	return out
}

const yankedMessage = "yanked"

// outOfDate describes an outdated version by its own age.
func outOfDate(v registry.Version, now time.Time) string {
	if v.ReleaseDate == nil {
		return "out of date"
	}
	return FormatDuration(now.Sub(*v.ReleaseDate)) + " out of date"
}

// Latest returns the newest annotated version that is neither yanked nor a
// prerelease, falling back to the newest version overall.
func Latest(reg registry.Registry, annotated []AnnotatedVersion) (AnnotatedVersion, bool) {
	for _, v := range annotated {
		if !v.Yanked && !reg.IsPrerelease(v.Version.Version) {
			return v, true
		}
	}
	if len(annotated) > 0 {
		return annotated[0], true
	}
	return AnnotatedVersion{}, false
}

// Match aligns a constraint to one known version. It prefers the newest
// matching version that is neither yanked nor a prerelease and falls back to
// the newest matching version of any kind. annotated must be newest first,
// as returned by Annotate.
func Match(reg registry.Registry, annotated []AnnotatedVersion, constraint string) (AnnotatedVersion, bool) {
	var fallback *AnnotatedVersion
	for i := range annotated {
		v := &annotated[i]
		if !reg.Matches(v.Version.Version, constraint) {
			continue
		}
		if !v.Yanked && !reg.IsPrerelease(v.Version.Version) {
			return *v, true
		}
		if fallback == nil {
			fallback = v
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return AnnotatedVersion{}, false
}
