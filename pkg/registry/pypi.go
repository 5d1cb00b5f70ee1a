package registry

import (
	"fmt"
	"regexp"
	"strings"

	version "github.com/aquasecurity/go-pep440-version"

	"github.com/depreview/depreview/pkg/errors"
)

var pep503SepRE = regexp.MustCompile(`[-_.]+`)

// PyPI implements [Registry] for the Python Package Index.
type PyPI struct {
	baseURL string
}

// NewPyPI returns the PyPI registry.
func NewPyPI() *PyPI {
	return &PyPI{baseURL: "https://pypi.org"}
}

// Name returns "pypi".
func (p *PyPI) Name() string { return "pypi" }

// PURLType returns "pypi".
func (p *PyPI) PURLType() string { return "pypi" }

// Normalize applies PEP 503: runs of "-", "_" and "." collapse to a single
// "-" and the result is lowercased.
func (p *PyPI) Normalize(name string) string {
	return strings.ToLower(pep503SepRE.ReplaceAllString(strings.TrimSpace(name), "-"))
}

// ValidateName checks name against the PEP 508 name grammar.
func (p *PyPI) ValidateName(name string) error {
	return errors.ValidatePythonPackageName(name)
}

// Compare orders versions by PEP 440. Versions that do not parse sort below
// every valid version and are ordered lexically among themselves.
func (p *PyPI) Compare(a, b string) int {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	case va.LessThan(vb):
		return -1
	case vb.LessThan(va):
		return 1
	}
	return 0
}

// ValidPEP440 reports whether v parses as a PEP 440 version.
func ValidPEP440(v string) bool {
	_, err := version.Parse(v)
	return err == nil
}

// IsPrerelease reports whether v has a pre-release or development segment.
// Versions that do not parse are not prereleases.
func (p *PyPI) IsPrerelease(v string) bool {
	ver, err := version.Parse(v)
	if err != nil {
		return false
	}
	return ver.IsPreRelease()
}

// Matches evaluates constraint as a PEP 440 specifier set. An empty
// constraint matches everything; an unreadable one matches nothing.
// Exclusive bounds follow PEP 440: "<2.0" rejects 2.0 pre-releases and
// ">1.0" rejects 1.0 post-releases.
func (p *PyPI) Matches(v, constraint string) bool {
	if strings.TrimSpace(constraint) == "" {
		return true
	}
	specs, err := version.NewSpecifiers(constraint)
	if err != nil {
		return false
	}
	ver, err := version.Parse(v)
	if err != nil {
		return false
	}
	return specs.Check(ver)
}

// Link returns the project page on pypi.org.
func (p *PyPI) Link(name string) string {
	return fmt.Sprintf("%s/project/%s/", p.baseURL, p.Normalize(name))
}

var _ Registry = (*PyPI)(nil)
