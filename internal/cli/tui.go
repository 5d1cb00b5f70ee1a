package cli

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/pipeline"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// ReportModel is the bubbletea model for browsing a report. Entries are
// sorted worst status first; enter toggles the detail pane.
type ReportModel struct {
	Report  *pipeline.Report
	Entries []pipeline.EntryReport
	Cursor  int
	Offset  int
	Height  int
	Detail  bool
}

func newReportModel(rep *pipeline.Report) ReportModel {
	entries := append([]pipeline.EntryReport(nil), rep.Entries...)
	sortBySeverity(entries)
	return ReportModel{Report: rep, Entries: entries, Height: 15}
}

// sortBySeverity orders entries worst first, unresolved on top, then by
// name.
func sortBySeverity(entries []pipeline.EntryReport) {
	rank := func(e pipeline.EntryReport) int {
		if e.Resolved == nil {
			return 100
		}
		return e.Status().Severity()
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := rank(entries[i]), rank(entries[j])
		if ri != rj {
			return ri > rj
		}
		return entries[i].Name < entries[j].Name
	})
}

func (m ReportModel) Init() tea.Cmd {
	return nil
}

func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.Detail && msg.String() == "esc" {
				m.Detail = false
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Entries)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", " ":
			if len(m.Entries) > 0 {
				m.Detail = !m.Detail
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m ReportModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Report.Registry + " · " + string(m.Report.Format)))
	b.WriteString("  ")
	b.WriteString(summaryLine(m.Report.Summary))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  q quit"))
	b.WriteString("\n\n")

	if len(m.Entries) == 0 {
		b.WriteString(listDimStyle.Render("no dependencies"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Entries))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		e := m.Entries[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, e.DisplayName, e.Required, resolvedVersion(e.Resolved), statusLabel(e.Status())})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("", "Package", "Required", "Resolved", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Entries) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col == 4 {
				base = statusStyle(m.Entries[idx].Status())
			}
			if idx == m.Cursor {
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Entries))))

	if m.Detail {
		b.WriteString("\n\n")
		b.WriteString(m.detailView(m.Entries[m.Cursor]))
	}
	return b.String()
}

func (m ReportModel) detailView(e pipeline.EntryReport) string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(e.DisplayName))
	b.WriteString("\n")
	printKeyValue(&b, "Required", e.Required)
	if e.Resolved != nil {
		printKeyValue(&b, "Resolved", e.Resolved.Version.Version)
		printKeyValue(&b, "Status", statusStyle(e.Status()).Render(statusLabel(e.Status())))
		printKeyValue(&b, "Note", e.Resolved.Message)
		if e.Resolved.ReleaseDate != nil {
			printKeyValue(&b, "Released", humanize.RelTime(*e.Resolved.ReleaseDate, m.Report.Now, "ago", "from now"))
		}
	}
	if e.Latest != nil && (e.Resolved == nil || e.Latest.Version.Version != e.Resolved.Version.Version) {
		printKeyValue(&b, "Latest", e.Latest.Version.Version)
	}
	if e.Direct.Known() {
		printKeyValue(&b, "Direct", e.Direct.String())
	}
	printKeyValue(&b, "Group", e.Group)
	printKeyValue(&b, "Repository", e.Repository)
	printKeyValue(&b, "Registry", e.Link)
	printKeyValue(&b, "PURL", e.PURL)
	if e.Error != "" {
		printKeyValue(&b, "Error", StyleWarning.Render(e.Error))
	}
	if e.Resolved != nil && e.Resolved.Status == freshness.StatusYanked {
		b.WriteString(StyleWarning.Render("This release was withdrawn by its publisher."))
		b.WriteString("\n")
	}
	return b.String()
}
