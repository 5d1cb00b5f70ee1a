package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/pipeline"
	"github.com/depreview/depreview/pkg/tree"
)

// summaryOrder lists statuses from best to worst, then unresolved.
var summaryOrder = []freshness.Status{
	freshness.StatusOK,
	freshness.StatusOutdated,
	freshness.StatusVeryOutdated,
	freshness.StatusYanked,
	"",
}

// writeReportText renders rep as a table. Trees are drawn with indented
// names; cycles are marked and not expanded.
func writeReportText(w io.Writer, rep *pipeline.Report) {
	byName := make(map[string]pipeline.EntryReport, len(rep.Entries))
	for _, e := range rep.Entries {
		byName[e.DisplayName] = e
	}

	var (
		rows     [][]string
		statuses []freshness.Status
	)
	tree.Walk(rep.Tree.Nodes, func(depth int, n *tree.Node) {
		name := strings.Repeat("  ", depth) + n.Name
		if depth > 0 {
			name = strings.Repeat("  ", depth-1) + "└ " + n.Name
		}
		if n.Cycle {
			name += " ↺"
		}
		e := byName[n.Name]
		rows = append(rows, []string{
			name,
			n.Required,
			resolvedVersion(n.Resolved),
			statusLabel(n.Status()),
			resolvedVersion(e.Latest),
			note(n, e),
		})
		statuses = append(statuses, n.Status())
	})

	fmt.Fprintln(w, StyleTitle.Render(rep.Registry)+StyleDim.Render(" · "+string(rep.Format)))

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("Package", "Required", "Resolved", "Status", "Latest", "Note").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == -1 {
				return styleHeader.Padding(0, 1)
			}
			if col == 3 && row >= 0 && row < len(statuses) {
				return statusStyle(statuses[row]).Padding(0, 1)
			}
			if col == 5 {
				return base.Foreground(colorGray)
			}
			return base
		})
	fmt.Fprintln(w, t.Render())

	fmt.Fprintln(w, summaryLine(rep.Summary))
	if at := oldestRefresh(rep.Entries); !at.IsZero() {
		printDetail(w, "release data refreshed %s", humanize.RelTime(at, rep.Now, "ago", "from now"))
	}
	for _, e := range rep.Entries {
		if e.Error != "" {
			printError(w, "%s: %s", e.DisplayName, e.Error)
		}
	}
}

func resolvedVersion(v *freshness.AnnotatedVersion) string {
	if v == nil {
		return "-"
	}
	return v.Version.Version
}

func note(n *tree.Node, e pipeline.EntryReport) string {
	switch {
	case n.Cycle:
		return "cycle"
	case n.Unresolved && e.Error != "":
		return e.Error
	case n.Resolved != nil && n.Resolved.Message != "":
		return n.Resolved.Message
	case n.Group != "":
		return n.Group
	}
	return ""
}

func summaryLine(summary map[freshness.Status]int) string {
	var parts []string
	for _, s := range summaryOrder {
		if n := summary[s]; n > 0 {
			parts = append(parts, statusStyle(s).Render(fmt.Sprintf("%d %s", n, statusLabel(s))))
		}
	}
	if len(parts) == 0 {
		return StyleDim.Render("no dependencies")
	}
	return strings.Join(parts, StyleDim.Render(" · "))
}

func oldestRefresh(entries []pipeline.EntryReport) time.Time {
	var oldest time.Time
	for _, e := range entries {
		if e.LastRefresh == nil {
			continue
		}
		if oldest.IsZero() || e.LastRefresh.Before(oldest) {
			oldest = *e.LastRefresh
		}
	}
	return oldest
}
