package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/pipeline"
)

func annotated(status freshness.Status) *freshness.AnnotatedVersion {
	return &freshness.AnnotatedVersion{Status: status}
}

func testReport() *pipeline.Report {
	return &pipeline.Report{
		Registry: "pypi",
		Format:   manifest.FormatRequirements,
		Entries: []pipeline.EntryReport{
			{Name: "click", DisplayName: "click", Resolved: annotated(freshness.StatusOK)},
			{Name: "flask", DisplayName: "Flask", Resolved: annotated(freshness.StatusVeryOutdated)},
			{Name: "ghost", DisplayName: "ghost", Error: "package not found"},
			{Name: "attrs", DisplayName: "attrs", Resolved: annotated(freshness.StatusOK)},
		},
	}
}

func TestReportModel_Order(t *testing.T) {
	m := newReportModel(testReport())

	var got []string
	for _, e := range m.Entries {
		got = append(got, e.Name)
	}
	want := "ghost flask attrs click"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestReportModel_Navigation(t *testing.T) {
	var model tea.Model = newReportModel(testReport())

	press := func(key string) {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	}

	press("j")
	press("j")
	press("k")
	m := model.(ReportModel)
	if m.Cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.Cursor)
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(ReportModel)
	if !m.Detail {
		t.Fatal("enter should open the detail pane")
	}
	if view := m.View(); !strings.Contains(view, "Flask") {
		t.Errorf("detail view missing Flask:\n%s", view)
	}

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("q should quit")
	}
}

func TestReportModel_CursorBounds(t *testing.T) {
	var model tea.Model = newReportModel(testReport())
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	for range 10 {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if m := model.(ReportModel); m.Cursor != len(m.Entries)-1 {
		t.Errorf("cursor = %d, want %d", m.Cursor, len(m.Entries)-1)
	}
}
