package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/tree"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed adds the required constraint and the status message to
	// node labels. When false, labels show the name and resolved version.
	Detailed bool
}

// StatusColors maps each status to its node fill color.
var StatusColors = map[freshness.Status]string{
	freshness.StatusOK:           "#c8e6c9",
	freshness.StatusOutdated:     "#fff59d",
	freshness.StatusVeryOutdated: "#ffcc80",
	freshness.StatusYanked:       "#ef9a9a",
}

const unknownColor = "lightgrey"

// ToDOT converts a report tree to Graphviz DOT format.
//
// A package reached along several paths is drawn once with an edge from each
// parent. Cycles become back edges. A flat result has no edges.
func ToDOT(res tree.Result, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	var (
		nodes  []string
		edges  []string
		drawn  = make(map[string]bool)
		linked = make(map[string]bool)
	)
	var visit func(parent string, ns []*tree.Node)
	visit = func(parent string, ns []*tree.Node) {
		for _, n := range ns {
			if parent != "" {
				edge := fmt.Sprintf("  %q -> %q;\n", parent, n.Name)
				if !linked[edge] {
					linked[edge] = true
					edges = append(edges, edge)
				}
			}
			if n.Cycle {
				continue
			}
			if !drawn[n.Name] {
				drawn[n.Name] = true
				nodes = append(nodes, fmt.Sprintf("  %q [%s];\n", n.Name, strings.Join(fmtAttrs(n, opts), ", ")))
			}
			visit(n.Name, n.Children)
		}
	}
	visit("", res.Nodes)

	for _, n := range nodes {
		buf.WriteString(n)
	}
	if len(edges) > 0 {
		buf.WriteString("\n")
		for _, e := range edges {
			buf.WriteString(e)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n *tree.Node, detailed bool) string {
	parts := []string{n.Name}
	if n.Resolved != nil {
		parts = append(parts, n.Resolved.Version.Version)
	}
	if !detailed {
		return strings.Join(parts, "\n")
	}
	if n.Required != "" {
		parts = append(parts, "required: "+n.Required)
	}
	if n.Resolved != nil && n.Resolved.Message != "" {
		parts = append(parts, n.Resolved.Message)
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n *tree.Node, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, opts.Detailed))}
	color, ok := StatusColors[n.Status()]
	if !ok {
		color = unknownColor
	}
	attrs = append(attrs, fmt.Sprintf("fillcolor=%q", color))
	if n.Unresolved {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fontcolor=black")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// sized from the viewBox so the image scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
