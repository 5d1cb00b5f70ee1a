package manifest

import (
	"github.com/BurntSushi/toml"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/registry"
)

// ParsePoetryLock reads a poetry.lock document. Every package pins an exact
// version. When a package carries a dependencies table its names become a
// known dependency list, even if the table is empty; without the table the
// list is unknown.
func ParsePoetryLock(data []byte, reg registry.Registry) ([]Entry, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLockFile, err, "lock file is not valid TOML")
	}
	packages, ok := tableArray(doc["package"])
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidLockFile, "lock file has no package list")
	}

	entries := make([]Entry, 0, len(packages))
	for i, pkg := range packages {
		name, ok := pkg["name"].(string)
		if !ok || name == "" {
			return nil, errors.New(errors.ErrCodeInvalidLockFile, "package %d: missing or invalid name", i+1)
		}
		version, ok := pkg["version"].(string)
		if !ok || version == "" {
			return nil, errors.New(errors.ErrCodeInvalidLockFile, "package %q: missing or invalid version", name)
		}

		deps := UnknownDeps()
		if raw, present := pkg["dependencies"]; present {
			table, ok := raw.(map[string]any)
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidLockFile, "package %q: dependencies is not a table", name)
			}
			names := make([]string, 0, len(table))
			for dep := range table {
				names = append(names, reg.Normalize(dep))
			}
			deps = KnownDeps(names...)
		}

		group, _ := pkg["category"].(string)
		entries = append(entries, Entry{
			Name:       reg.Normalize(name),
			Constraint: "==" + version,
			DependsOn:  deps,
			Direct:     DirectUnknown,
			Group:      group,
		})
	}
	return entries, nil
}

// isPoetryLock reports whether doc has exactly the top-level keys package
// and metadata, with a non-empty metadata.files table.
func isPoetryLock(doc map[string]any) bool {
	if len(doc) != 2 {
		return false
	}
	if _, ok := doc["package"]; !ok {
		return false
	}
	meta, ok := doc["metadata"].(map[string]any)
	if !ok {
		return false
	}
	files, ok := meta["files"].(map[string]any)
	return ok && len(files) > 0
}

// tableArray accepts both [[package]] arrays of tables and inline arrays of
// inline tables.
func tableArray(v any) ([]map[string]any, bool) {
	switch arr := v.(type) {
	case []map[string]any:
		return arr, true
	case []any:
		out := make([]map[string]any, 0, len(arr))
		for _, item := range arr {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	}
	return nil, false
}
