package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/pipeline"
)

func (c *CLI) packageCommand() *cobra.Command {
	var (
		format  string
		limit   int
		refresh bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:     "package <registry> <name>",
		Aliases: []string{"pkg"},
		Short:   "Show the annotated release history of a package",
		Example: `  depreview package pypi flask
  depreview package golang golang.org/x/mod --limit 0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatJSON {
				return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want text or json)", format)
			}
			runner, closeFn, err := c.localRunner(noCache)
			if err != nil {
				return err
			}
			defer closeFn()
			runner.Refresh = refresh

			view, err := runner.Package(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if view.Redirect != "" {
				loggerFromContext(cmd.Context()).Debug("following normalized name", "from", args[1], "to", view.Redirect)
				if view, err = runner.Package(cmd.Context(), view.Registry, view.Redirect); err != nil {
					return err
				}
			}

			if format == formatJSON {
				enc := json.NewEncoder(c.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			writePackageText(c, view, limit)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum versions to list (0 for all)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refetch the release history")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the HTTP response cache")

	return cmd
}

func writePackageText(c *CLI, view *pipeline.PackageView, limit int) {
	w := c.Out
	fmt.Fprintln(w, StyleTitle.Render(view.DisplayName)+StyleDim.Render(" · "+view.Registry))
	printKeyValue(w, "Latest", resolvedVersion(view.Latest))
	printKeyValue(w, "Author", view.Author)
	printKeyValue(w, "Summary", view.Description)
	printKeyValue(w, "Repository", view.Repository)
	printKeyValue(w, "Registry", StyleLink.Render(view.Link))
	printKeyValue(w, "PURL", view.PURL)
	if !view.LastRefresh.IsZero() {
		printKeyValue(w, "Refreshed", humanize.Time(view.LastRefresh))
	}

	versions := view.Versions
	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}
	rows := make([][]string, 0, len(versions))
	for _, v := range versions {
		released := "-"
		if v.ReleaseDate != nil {
			released = v.ReleaseDate.Format("2006-01-02")
		}
		rows = append(rows, []string{v.Version.Version, released, statusLabel(v.Status), v.Message})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("Version", "Released", "Status", "Note").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader.Padding(0, 1)
			}
			if col == 2 && row >= 0 && row < len(versions) {
				return statusStyle(versions[row].Status).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, summaryLine(statusCounts(view.Versions)))

	if hidden := len(view.Versions) - len(versions); hidden > 0 {
		printDetail(w, "%d older versions hidden (use --limit 0)", hidden)
	}
}

// statusCounts counts versions by status.
func statusCounts(versions []freshness.AnnotatedVersion) map[freshness.Status]int {
	out := make(map[freshness.Status]int)
	for _, v := range versions {
		out[v.Status]++
	}
	return out
}
