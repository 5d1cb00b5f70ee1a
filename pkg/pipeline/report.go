package pipeline

import (
	"context"
	"time"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/observability"
	"github.com/depreview/depreview/pkg/tree"
)

// EntryReport is one line of a dependency list with its resolution.
type EntryReport struct {
	Name        string                      `json:"name"`
	DisplayName string                      `json:"display_name"`
	Required    string                      `json:"required"`
	Resolved    *freshness.AnnotatedVersion `json:"resolved,omitempty"`
	Latest      *freshness.AnnotatedVersion `json:"latest,omitempty"`
	Direct      manifest.Direct             `json:"direct"`
	Group       string                      `json:"group,omitempty"`
	Link        string                      `json:"link"`
	PURL        string                      `json:"purl,omitempty"`
	Repository  string                      `json:"repository,omitempty"`
	LastRefresh *time.Time                  `json:"last_refresh,omitempty"`
	Error       string                      `json:"error,omitempty"`
}

// Status returns the status of the resolved version, or "" if unresolved.
func (e EntryReport) Status() freshness.Status {
	if e.Resolved == nil {
		return ""
	}
	return e.Resolved.Status
}

// Report is the evaluated form of a dependency list.
type Report struct {
	ID        string                   `json:"id,omitempty"`
	Registry  string                   `json:"registry"`
	Format    manifest.Format          `json:"format"`
	CreatedAt *time.Time               `json:"created_at,omitempty"`
	Now       time.Time                `json:"now"`
	Entries   []EntryReport            `json:"entries"`
	Tree      tree.Result              `json:"tree"`
	Summary   map[freshness.Status]int `json:"summary"`
}

// Report evaluates a previously uploaded list.
func (r *Runner) Report(ctx context.Context, token string) (*Report, error) {
	if r.Codec == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no token codec configured")
	}
	id, err := r.Codec.Decode(token)
	if err != nil {
		return nil, err
	}
	list, err := r.Store.GetList(ctx, id)
	if err != nil {
		return nil, err
	}

	rep, err := r.evaluate(ctx, list.Registry, list.Format, list.Entries)
	if err != nil {
		return nil, err
	}
	rep.ID = token
	created := list.CreatedAt
	rep.CreatedAt = &created
	return rep, nil
}

func (r *Runner) evaluate(ctx context.Context, regName string, format manifest.Format, entries []manifest.Entry) (rep *Report, err error) {
	start := time.Now()
	defer func() {
		observability.Pipeline().OnReportComplete(ctx, len(entries), time.Since(start), err)
	}()

	reg, err := r.Registries.Get(regName)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := reg.Normalize(e.Name)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}

	pkgs, errs, err := r.histories(ctx, reg, names)
	if err != nil {
		return nil, err
	}

	now := r.now()
	rep = &Report{
		Registry: reg.Name(),
		Format:   format,
		Now:      now,
		Entries:  make([]EntryReport, 0, len(entries)),
	}
	inputs := make(map[string]tree.Input, len(entries))
	annotated := make(map[string][]freshness.AnnotatedVersion, len(pkgs))

	for _, e := range entries {
		name := reg.Normalize(e.Name)
		er := EntryReport{
			Name:        name,
			DisplayName: e.Name,
			Required:    e.Constraint,
			Direct:      e.Direct,
			Group:       e.Group,
			Link:        reg.Link(name),
		}

		if pkg, ok := pkgs[name]; ok {
			av, done := annotated[name]
			if !done {
				av = r.annotate(reg, pkg, now)
				annotated[name] = av
			}
			if v, ok := freshness.Match(reg, av, e.Constraint); ok {
				er.Resolved = &v
			} else {
				er.Error = "no release matches " + constraintLabel(e.Constraint)
			}
			if v, ok := freshness.Latest(reg, av); ok {
				er.Latest = &v
			}
			if pkg.OrigName != "" {
				er.DisplayName = pkg.OrigName
			}
			er.Repository = pkg.Repository
			refreshed := pkg.LastRefresh
			er.LastRefresh = &refreshed
		} else if perr := errs[name]; perr != nil {
			er.Error = errors.UserMessage(perr)
			r.Logger.Warn("package unavailable", "package", name, "error", perr)
		}

		version := ""
		if er.Resolved != nil {
			version = er.Resolved.Version.Version
		}
		er.PURL = PURL(reg, name, version)

		rep.Entries = append(rep.Entries, er)
		inputs[name] = tree.Input{
			Name:      er.DisplayName,
			Resolved:  er.Resolved,
			Required:  e.Constraint,
			Direct:    e.Direct,
			DependsOn: e.DependsOn,
			Group:     e.Group,
		}
	}

	rep.Tree = tree.Build(inputs)
	rep.Summary = tree.Summary(rep.Tree)

	r.Logger.Info("evaluated list",
		"registry", reg.Name(),
		"entries", len(entries),
		"packages", len(pkgs),
		"failed", len(errs),
		"duration", time.Since(start))
	return rep, nil
}

func constraintLabel(c string) string {
	if c == "" {
		return "any version"
	}
	return c
}
