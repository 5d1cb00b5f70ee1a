package manifest

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/registry"
)

// ParsePyProject reads the [tool.poetry.dependencies] and optional
// [tool.poetry.dev-dependencies] tables of a pyproject.toml. All entries are
// direct, dependency data is unknown, and the "python" interpreter pseudo
// dependency is dropped. Specs are passed through [Translate].
func ParsePyProject(data []byte, reg registry.Registry) ([]Entry, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidProjectFile, err, "project file is not valid TOML")
	}
	poetry, ok := poetryTable(doc)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidProjectFile, "project file has no [tool.poetry] table")
	}

	raw, present := poetry["dependencies"]
	if !present {
		return nil, errors.New(errors.ErrCodeInvalidProjectFile, "missing [tool.poetry.dependencies]")
	}
	main, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidProjectFile, "tool.poetry.dependencies is not a table")
	}
	entries, err := projectEntries(main, GroupMain, reg)
	if err != nil {
		return nil, err
	}

	if raw, present := poetry["dev-dependencies"]; present {
		dev, ok := raw.(map[string]any)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidProjectFile, "tool.poetry.dev-dependencies is not a table")
		}
		devEntries, err := projectEntries(dev, GroupDev, reg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, devEntries...)
	}
	return entries, nil
}

func projectEntries(table map[string]any, group string, reg registry.Registry) ([]Entry, error) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, name := range keys {
		if strings.EqualFold(name, "python") {
			continue
		}
		spec, ok := table[name].(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidProjectFile, "dependency %q: constraint is not a string", name)
		}
		constraint, err := Translate(spec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Name:       reg.Normalize(name),
			Constraint: constraint,
			DependsOn:  UnknownDeps(),
			Direct:     DirectYes,
			Group:      group,
		})
	}
	return entries, nil
}

func poetryTable(doc map[string]any) (map[string]any, bool) {
	tool, ok := doc["tool"].(map[string]any)
	if !ok {
		return nil, false
	}
	poetry, ok := tool["poetry"].(map[string]any)
	return poetry, ok
}
