// Package manifest detects and parses user-submitted dependency manifests.
//
// # Overview
//
// A manifest arrives as raw bytes with no trustworthy name. [Detect] decides
// what it is from its content alone and returns canonical entries:
//
//	regs := registry.NewSet(registry.NewPyPI(), registry.NewGo())
//	res, err := manifest.Detect(data, regs)
//	if errors.Is(err, errors.ErrCodeUnknownFormat) {
//	    // ask the user to check the file
//	}
//	for _, e := range res.Entries {
//	    fmt.Println(e.Name, e.Constraint)
//	}
//
// # Formats
//
//   - poetry.lock: exact pins plus the captured dependency graph
//   - pyproject.toml: direct dependencies with Poetry range syntax
//   - requirements.txt: a flat list of "name==version" pins
//   - go.mod: module requirements with indirect markers
//
// # Entries
//
// Each [Entry] has a normalized name, a normalized constraint (see
// [Translate]), a dependency list and a direct flag. The dependency list is
// a [Deps] value that keeps "no dependencies" apart from "not recorded", and
// the direct flag is a three-way [Direct].
//
// Parsing is pure: no I/O, no shared state. All functions are safe for
// concurrent use.
package manifest
