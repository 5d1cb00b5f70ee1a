package manifest

import (
	"bytes"
	"encoding/json"
	"slices"
	"sort"
)

// Format identifies the kind of manifest an entry list came from.
type Format string

// Supported manifest formats.
const (
	FormatPoetryLock   Format = "poetry.lock"
	FormatPyProject    Format = "pyproject.toml"
	FormatRequirements Format = "requirements.txt"
	FormatGoMod        Format = "go.mod"
)

// Dependency groups recorded on entries that come from formats which
// distinguish them.
const (
	GroupMain = "main"
	GroupDev  = "dev"
)

// Direct records whether an entry was declared by the manifest author.
// The zero value is DirectUnknown.
type Direct int8

const (
	DirectUnknown Direct = iota
	DirectYes
	DirectNo
)

// DirectOf converts a known boolean into a Direct.
func DirectOf(b bool) Direct {
	if b {
		return DirectYes
	}
	return DirectNo
}

// Known reports whether d is DirectYes or DirectNo.
func (d Direct) Known() bool { return d == DirectYes || d == DirectNo }

func (d Direct) String() string {
	switch d {
	case DirectYes:
		return "true"
	case DirectNo:
		return "false"
	}
	return "unknown"
}

// MarshalJSON encodes true, false, or null for unknown.
func (d Direct) MarshalJSON() ([]byte, error) {
	if !d.Known() {
		return []byte("null"), nil
	}
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts true, false and null.
func (d *Direct) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b == nil {
		*d = DirectUnknown
	} else {
		*d = DirectOf(*b)
	}
	return nil
}

// Deps is the dependency list of an entry. An unknown list and a known empty
// list are different values: the first means the source format did not
// capture dependency data, the second that the package has none.
type Deps struct {
	known bool
	names []string
}

// UnknownDeps returns a Deps carrying no information.
func UnknownDeps() Deps { return Deps{} }

// KnownDeps returns a Deps holding names in sorted order. Calling it with no
// names yields a known, empty list.
func KnownDeps(names ...string) Deps {
	sorted := append(make([]string, 0, len(names)), names...)
	sort.Strings(sorted)
	return Deps{known: true, names: slices.Compact(sorted)}
}

// Known reports whether dependency data was captured.
func (d Deps) Known() bool { return d.known }

// Names returns the dependency names, or nil when unknown.
func (d Deps) Names() []string {
	if !d.known {
		return nil
	}
	return append([]string{}, d.names...)
}

// Equal reports whether two Deps carry the same information.
func (d Deps) Equal(o Deps) bool {
	return d.known == o.known && slices.Equal(d.names, o.names)
}

// MarshalJSON encodes null for unknown and an array otherwise.
func (d Deps) MarshalJSON() ([]byte, error) {
	if !d.known {
		return []byte("null"), nil
	}
	return json.Marshal(d.Names())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (d *Deps) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = UnknownDeps()
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*d = KnownDeps(names...)
	return nil
}

// Entry is one dependency declared by a manifest.
type Entry struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint"`
	DependsOn  Deps   `json:"depends_on"`
	Direct     Direct `json:"direct"`
	Group      string `json:"group,omitempty"`
}

// Result is the outcome of detecting and parsing one manifest.
type Result struct {
	Registry string  `json:"registry"`
	Format   Format  `json:"format"`
	Entries  []Entry `json:"entries"`
}

// MarkDirect sets Direct on lock-file entries using the names declared by a
// companion project file. Entries listed there become DirectYes, the rest
// DirectNo. Entries already carrying a known flag are left alone.
func MarkDirect(entries []Entry, declared []Entry) []Entry {
	names := make(map[string]string, len(declared))
	for _, d := range declared {
		names[d.Name] = d.Group
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if !e.Direct.Known() {
			group, ok := names[e.Name]
			e.Direct = DirectOf(ok)
			if ok && group != "" {
				e.Group = group
			}
		}
		out[i] = e
	}
	return out
}
