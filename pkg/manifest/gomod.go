package manifest

import (
	"golang.org/x/mod/modfile"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/registry"
)

// ParseGoMod reads the require directives of a go.mod file. Requirements
// marked "// indirect" are non-direct, everything else is direct. go.mod does
// not record the dependency graph, so dependency data is unknown.
func ParseGoMod(data []byte, reg registry.Registry) ([]Entry, error) {
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidModFile, err, "could not parse go.mod")
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return nil, errors.New(errors.ErrCodeInvalidModFile, "go.mod has no module directive")
	}

	entries := make([]Entry, 0, len(f.Require))
	for _, req := range f.Require {
		entries = append(entries, Entry{
			Name:       reg.Normalize(req.Mod.Path),
			Constraint: "==" + req.Mod.Version,
			DependsOn:  UnknownDeps(),
			Direct:     DirectOf(!req.Indirect),
		})
	}
	return entries, nil
}

// looksLikeGoMod reports whether data parses as a go.mod with a module
// directive and at least one requirement.
func looksLikeGoMod(data []byte) bool {
	f, err := modfile.ParseLax("go.mod", data, nil)
	return err == nil && f.Module != nil && f.Module.Mod.Path != "" && len(f.Require) > 0
}
