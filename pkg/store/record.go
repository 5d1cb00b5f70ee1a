package store

import (
	"github.com/depreview/depreview/pkg/manifest"
)

// entryRecord is the storage form of a manifest entry. The tri-state fields
// of manifest.Entry are spelled out so that document and row encoders can
// handle them.
type entryRecord struct {
	Name       string   `bson:"name"`
	Constraint string   `bson:"constraint"`
	DepsKnown  bool     `bson:"deps_known"`
	DependsOn  []string `bson:"depends_on,omitempty"`
	Direct     *bool    `bson:"direct,omitempty"`
	Group      string   `bson:"group,omitempty"`
}

func toRecord(e manifest.Entry) entryRecord {
	r := entryRecord{
		Name:       e.Name,
		Constraint: e.Constraint,
		DepsKnown:  e.DependsOn.Known(),
		DependsOn:  e.DependsOn.Names(),
		Group:      e.Group,
	}
	if e.Direct.Known() {
		b := e.Direct == manifest.DirectYes
		r.Direct = &b
	}
	return r
}

func (r entryRecord) entry() manifest.Entry {
	e := manifest.Entry{
		Name:       r.Name,
		Constraint: r.Constraint,
		DependsOn:  manifest.UnknownDeps(),
		Group:      r.Group,
	}
	if r.DepsKnown {
		e.DependsOn = manifest.KnownDeps(r.DependsOn...)
	}
	if r.Direct != nil {
		e.Direct = manifest.DirectOf(*r.Direct)
	}
	return e
}
