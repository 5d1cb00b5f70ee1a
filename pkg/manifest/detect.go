package manifest

import (
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/registry"
)

// Parser turns manifest bytes into entries using the rules of reg.
type Parser func(data []byte, reg registry.Registry) ([]Entry, error)

// Kind describes one manifest format: its name, the registry its packages
// live in and the parser that reads it.
type Kind struct {
	Format   Format
	Registry string
	Parse    Parser
}

var kinds = []Kind{
	{Format: FormatPoetryLock, Registry: "pypi", Parse: ParsePoetryLock},
	{Format: FormatPyProject, Registry: "pypi", Parse: ParsePyProject},
	{Format: FormatRequirements, Registry: "pypi", Parse: ParseRequirements},
	{Format: FormatGoMod, Registry: "golang", Parse: ParseGoMod},
}

// Kinds lists every manifest format Detect can recognize.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// KindOf returns the Kind for format.
func KindOf(format Format) (Kind, bool) {
	for _, k := range kinds {
		if k.Format == format {
			return k, true
		}
	}
	return Kind{}, false
}

// Sniff decides which format data is in without parsing entries. Detection
// never trusts a file name or caller hint.
//
// TOML documents are classified by shape: exactly the keys package and
// metadata with a non-empty metadata.files table is a Poetry lock file, a
// tool.poetry table is a Poetry project file, anything else is rejected.
// Other content is accepted as a requirements list when every tested line is
// a pin and at least three lines were tested, and as a go.mod when it has a
// module directive and requirements.
func Sniff(data []byte) (Kind, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err == nil {
		switch {
		case isPoetryLock(doc):
			k, _ := KindOf(FormatPoetryLock)
			return k, nil
		case hasPoetryTable(doc):
			k, _ := KindOf(FormatPyProject)
			return k, nil
		default:
			return Kind{}, errors.New(errors.ErrCodeUnknownFormat, "Unrecognized structured file")
		}
	}

	if looksLikeRequirements(data) {
		k, _ := KindOf(FormatRequirements)
		return k, nil
	}
	if looksLikeGoMod(data) {
		k, _ := KindOf(FormatGoMod)
		return k, nil
	}
	return Kind{}, errors.New(errors.ErrCodeUnknownFormat, "Unknown file format")
}

// Detect sniffs the format of data and parses it with the matching parser.
// Each parse works on the full input, so a failed attempt never affects the
// next one.
func Detect(data []byte, regs *registry.Set) (*Result, error) {
	kind, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	reg, err := regs.Get(kind.Registry)
	if err != nil {
		return nil, err
	}
	entries, err := kind.Parse(data, reg)
	if err != nil {
		return nil, err
	}
	return &Result{Registry: reg.Name(), Format: kind.Format, Entries: entries}, nil
}

// ParseAs parses data as a specific format, skipping detection.
func ParseAs(format Format, data []byte, regs *registry.Set) (*Result, error) {
	kind, ok := KindOf(format)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported manifest format %q", format)
	}
	reg, err := regs.Get(kind.Registry)
	if err != nil {
		return nil, err
	}
	entries, err := kind.Parse(data, reg)
	if err != nil {
		return nil, err
	}
	return &Result{Registry: reg.Name(), Format: kind.Format, Entries: entries}, nil
}

func hasPoetryTable(doc map[string]any) bool {
	_, ok := poetryTable(doc)
	return ok
}
