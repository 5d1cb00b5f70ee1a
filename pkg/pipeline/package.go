package pipeline

import (
	"context"
	"strings"
	"time"

	packageurl "github.com/package-url/packageurl-go"

	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/registry"
)

// PackageView is the annotated release history of one package.
//
// When the requested name is not in normalized form only Identity and
// Redirect are set; callers should send the user to the normalized name.
type PackageView struct {
	registry.Identity
	Redirect    string                       `json:"redirect,omitempty"`
	DisplayName string                       `json:"display_name,omitempty"`
	Author      string                       `json:"author,omitempty"`
	Description string                       `json:"description,omitempty"`
	Repository  string                       `json:"repository,omitempty"`
	Link        string                       `json:"link,omitempty"`
	PURL        string                       `json:"purl,omitempty"`
	LastRefresh time.Time                    `json:"last_refresh"`
	Latest      *freshness.AnnotatedVersion  `json:"latest,omitempty"`
	Versions    []freshness.AnnotatedVersion `json:"versions,omitempty"`
}

// Package returns the annotated history of name on the registry called
// regName, refreshing it if stale.
func (r *Runner) Package(ctx context.Context, regName, name string) (*PackageView, error) {
	id, err := r.Registries.Identity(regName, name)
	if err != nil {
		return nil, err
	}
	if id.Name != name {
		return &PackageView{Identity: id, Redirect: id.Name}, nil
	}
	reg, err := r.Registries.Get(id.Registry)
	if err != nil {
		return nil, err
	}

	pkg, err := r.ensurePackage(ctx, reg, id.Name)
	if err != nil {
		return nil, err
	}

	versions := r.annotate(reg, pkg, r.now())
	view := &PackageView{
		Identity:    id,
		DisplayName: pkg.OrigName,
		Author:      pkg.Author,
		Description: pkg.Description,
		Repository:  pkg.Repository,
		Link:        reg.Link(id.Name),
		LastRefresh: pkg.LastRefresh,
		Versions:    versions,
	}
	version := ""
	if v, ok := freshness.Latest(reg, versions); ok {
		view.Latest = &v
		version = v.Version.Version
	}
	view.PURL = PURL(reg, id.Name, version)
	return view, nil
}

// PURL returns the package URL for name at version. An empty version gives
// a versionless purl. Go module paths are split into namespace and name.
func PURL(reg registry.Registry, name, version string) string {
	namespace := ""
	if reg.PURLType() == packageurl.TypeGolang {
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			namespace, name = name[:i], name[i+1:]
		}
	}
	return packageurl.NewPackageURL(reg.PURLType(), namespace, name, version, nil, "").ToString()
}
