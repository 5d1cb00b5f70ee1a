// Package tree rebuilds a display tree from the flattened entries of a
// dependency list.
//
// Entries only record the names each package depends on, and that graph may
// contain cycles. [Build] starts at the direct dependencies and expands
// children by name, keeping a seen set per path: diamonds appear once on
// every path that reaches them while a cycle stops at the first repeat.
package tree

import (
	"sort"

	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/manifest"
)

// Input describes one package of a dependency list after its version has
// been resolved.
type Input struct {
	Name      string
	Resolved  *freshness.AnnotatedVersion
	Required  string
	Direct    manifest.Direct
	DependsOn manifest.Deps
	Group     string
}

// Node is one package in the rendered tree.
type Node struct {
	Name       string                      `json:"name"`
	Resolved   *freshness.AnnotatedVersion `json:"resolved,omitempty"`
	Required   string                      `json:"required"`
	Group      string                      `json:"group,omitempty"`
	Children   []*Node                     `json:"children,omitempty"`
	Unresolved bool                        `json:"unresolved,omitempty"`
	Cycle      bool                        `json:"cycle,omitempty"`
}

// Status returns the status of the resolved version, or "" if none.
func (n *Node) Status() freshness.Status {
	if n.Resolved == nil {
		return ""
	}
	return n.Resolved.Status
}

// Result is either a forest rooted at the direct dependencies (Tree is true)
// or a flat, name-sorted list of every entry.
type Result struct {
	Tree  bool    `json:"tree"`
	Nodes []*Node `json:"nodes"`
}

// Build assembles the display structure for inputs, keyed by normalized
// name. A tree is only built when the inputs contain at least one direct and
// one non-direct entry; otherwise the result is flat.
func Build(inputs map[string]Input) Result {
	names := make([]string, 0, len(inputs))
	var direct, indirect bool
	for name, in := range inputs {
		names = append(names, name)
		switch in.Direct {
		case manifest.DirectYes:
			direct = true
		case manifest.DirectNo:
			indirect = true
		}
	}
	sort.Strings(names)

	if !direct || !indirect {
		flat := make([]*Node, 0, len(names))
		for _, name := range names {
			flat = append(flat, leaf(name, inputs[name]))
		}
		return Result{Tree: false, Nodes: flat}
	}

	b := builder{inputs: inputs, seen: make(map[string]bool)}
	var roots []*Node
	for _, name := range names {
		if inputs[name].Direct == manifest.DirectYes {
			roots = append(roots, b.expand(name))
		}
	}
	return Result{Tree: true, Nodes: roots}
}

type builder struct {
	inputs map[string]Input
	seen   map[string]bool // names on the current path
}

func (b *builder) expand(name string) *Node {
	in, ok := b.inputs[name]
	if !ok {
		return &Node{Name: name, Unresolved: true}
	}
	n := leaf(name, in)
	if b.seen[name] {
		n.Cycle = true
		return n
	}

	b.seen[name] = true
	defer delete(b.seen, name)

	for _, child := range in.DependsOn.Names() {
		n.Children = append(n.Children, b.expand(child))
	}
	return n
}

func leaf(name string, in Input) *Node {
	if in.Name != "" {
		name = in.Name
	}
	return &Node{
		Name:     name,
		Resolved: in.Resolved,
		Required: in.Required,
		Group:    in.Group,
	}
}

// Walk visits nodes depth first, passing the depth of each node.
func Walk(nodes []*Node, fn func(depth int, n *Node)) {
	var visit func(int, []*Node)
	visit = func(depth int, ns []*Node) {
		for _, n := range ns {
			fn(depth, n)
			visit(depth+1, n.Children)
		}
	}
	visit(0, nodes)
}

// Summary counts the distinct packages in a result by status. Packages
// without a resolved version are counted under "".
func Summary(r Result) map[freshness.Status]int {
	seen := make(map[string]bool)
	out := make(map[freshness.Status]int)
	Walk(r.Nodes, func(_ int, n *Node) {
		if n.Cycle || seen[n.Name] {
			return
		}
		seen[n.Name] = true
		out[n.Status()]++
	})
	return out
}
