// Package render draws a dependency report as a Graphviz diagram.
//
// Rendering happens in two steps:
//
//	tree.Result → ToDOT() → DOT → RenderSVG() → SVG
//
// The DOT text is the intermediate form; it can be written out as-is for
// users who run Graphviz themselves. Nodes are filled by freshness status and
// packages with no registry entry get a dashed outline.
//
// [ToPDF] and [ToPNG] convert the SVG with the external rsvg-convert tool
// (from librsvg):
//
//	dot := render.ToDOT(report.Tree, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
//	png, err := render.ToPNG(svg, 2.0) // 2x scale
package render
