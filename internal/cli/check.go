package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/pipeline"
	"github.com/depreview/depreview/pkg/render"
)

// Output formats accepted by check.
const (
	formatText = "text"
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatPNG  = "png"
	formatPDF  = "pdf"
)

var checkFormats = []string{formatText, formatJSON, formatDOT, formatSVG, formatPNG, formatPDF}

type checkOptions struct {
	format      string
	output      string
	project     string
	now         string
	failOn      string
	interactive bool
	refresh     bool
	noCache     bool
	detailed    bool
}

func (c *CLI) checkCommand() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check <file|->",
		Short: "Report the freshness of every dependency in a file",
		Long: `Check parses a dependency list and classifies every pinned version.

Supported inputs are poetry.lock, pyproject.toml, pinned requirements files
(name==version per line) and go.mod. Use "-" to read from stdin.`,
		Example: `  depreview check poetry.lock --project pyproject.toml
  depreview check requirements.txt --format json
  depreview check go.mod --format svg -o deps.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "output format: "+strings.Join(checkFormats, ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().StringVar(&opts.project, "project", "", "pyproject.toml declaring the direct dependencies of a lock file")
	cmd.Flags().StringVar(&opts.now, "now", "", "evaluate as of this RFC 3339 time")
	cmd.Flags().StringVar(&opts.failOn, "fail-on", "", "exit non-zero if any dependency has this status or worse")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse the report interactively")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "refetch every release history")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the HTTP response cache")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include version details in graph labels")

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return checkFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func (c *CLI) runCheck(cmd *cobra.Command, path string, opts checkOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	if !slices.Contains(checkFormats, opts.format) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want one of %s)", opts.format, strings.Join(checkFormats, ", "))
	}
	if (opts.format == formatPNG || opts.format == formatPDF) && !render.ConverterAvailable() {
		return errors.New(errors.ErrCodeUnsupported, "%s output needs rsvg-convert on PATH", opts.format)
	}
	failOn := freshness.Status(opts.failOn)
	if opts.failOn != "" && !failOn.Valid() {
		return errors.New(errors.ErrCodeInvalidInput, "unknown status %q for --fail-on", opts.failOn)
	}

	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	var checkOpts pipeline.CheckOptions
	if opts.project != "" {
		if checkOpts.Project, err = os.ReadFile(opts.project); err != nil {
			return fmt.Errorf("read project file: %w", err)
		}
	}

	runner, closeFn, err := c.localRunner(opts.noCache)
	if err != nil {
		return err
	}
	defer closeFn()
	runner.Refresh = opts.refresh
	if opts.now != "" {
		at, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid --now")
		}
		runner.Now = func() time.Time { return at }
	}

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, c.Err, "Checking "+displayPath(path)+"...")
	spinner.Start()
	rep, err := runner.Check(ctx, data, checkOpts)
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done("checked dependencies", "entries", len(rep.Entries), "registry", rep.Registry)

	if opts.interactive {
		_, err := tea.NewProgram(newReportModel(rep), tea.WithContext(ctx)).Run()
		return err
	}

	if err := c.writeReport(cmd, rep, opts); err != nil {
		return err
	}

	if failOn != "" {
		if n := countAtLeast(rep, failOn); n > 0 {
			return fmt.Errorf("%d dependencies are %s or worse", n, statusLabel(failOn))
		}
	}
	return nil
}

func (c *CLI) writeReport(cmd *cobra.Command, rep *pipeline.Report, opts checkOptions) error {
	ctx := cmd.Context()

	var out []byte
	switch opts.format {
	case formatText:
		if opts.output == "" {
			writeReportText(c.Out, rep)
			return nil
		}
		var b strings.Builder
		writeReportText(&b, rep)
		out = []byte(b.String())
	case formatJSON:
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		out = append(data, '\n')
	default:
		dot := render.ToDOT(rep.Tree, render.Options{Detailed: opts.detailed})
		if opts.format == formatDOT {
			out = []byte(dot)
			break
		}
		svg, err := render.RenderSVG(ctx, dot)
		if err != nil {
			return err
		}
		switch opts.format {
		case formatSVG:
			out = svg
		case formatPNG:
			out, err = render.ToPNG(ctx, svg, 2)
		case formatPDF:
			out, err = render.ToPDF(ctx, svg)
		}
		if err != nil {
			return err
		}
	}

	if opts.output == "" {
		_, err := c.Out.Write(out)
		return err
	}
	if err := os.WriteFile(opts.output, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess(c.Err, "Wrote %s report", opts.format)
	printFile(c.Err, opts.output)
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, pipeline.MaxUploadSize+1))
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", displayPath(path), err)
	}
	return data, nil
}

func displayPath(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}

// countAtLeast counts entries whose status is at least as severe as s.
// Unresolved entries count only when s is "ok".
func countAtLeast(rep *pipeline.Report, s freshness.Status) int {
	n := 0
	for _, e := range rep.Entries {
		if e.Resolved == nil {
			if s == freshness.StatusOK {
				n++
			}
			continue
		}
		if e.Status().Severity() >= s.Severity() {
			n++
		}
	}
	return n
}
