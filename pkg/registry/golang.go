package registry

import (
	"strings"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"

	"github.com/depreview/depreview/pkg/errors"
)

// Go implements [Registry] for Go modules served by a module proxy.
type Go struct{}

// NewGo returns the Go module registry.
func NewGo() *Go { return &Go{} }

// Name returns "golang".
func (g *Go) Name() string { return "golang" }

// PURLType returns "golang".
func (g *Go) PURLType() string { return "golang" }

// Normalize trims whitespace. Module paths are case-sensitive, so nothing
// else changes.
func (g *Go) Normalize(name string) string {
	return strings.TrimSpace(name)
}

// ValidateName checks the module path syntax.
func (g *Go) ValidateName(name string) error {
	if err := errors.ValidateGoModulePath(name); err != nil {
		return err
	}
	if err := module.CheckPath(name); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPackage, err, "invalid Go module path: %q", name)
	}
	return nil
}

// Compare orders versions by semantic versioning. Invalid versions sort
// below valid ones, as [semver.Compare] does.
func (g *Go) Compare(a, b string) int {
	if !semver.IsValid(a) && !semver.IsValid(b) {
		return strings.Compare(a, b)
	}
	return semver.Compare(a, b)
}

// IsPrerelease reports whether v carries a prerelease suffix. Pseudo-versions
// count as prereleases.
func (g *Go) IsPrerelease(v string) bool {
	return semver.Prerelease(v) != ""
}

// Matches evaluates constraint using semantic version ordering.
func (g *Go) Matches(v, constraint string) bool {
	return Satisfies(g.Compare, v, constraint)
}

// Link returns the module page on pkg.go.dev.
func (g *Go) Link(name string) string {
	return "https://pkg.go.dev/" + name
}

var _ Registry = (*Go)(nil)
