package pipeline

import (
	"context"
	"time"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/observability"
)

// MaxUploadSize is the largest dependency list accepted, in bytes.
const MaxUploadSize = 1 << 20

// Upload is the result of storing a dependency list.
type Upload struct {
	ID       string          `json:"id"`
	URL      string          `json:"url"`
	Registry string          `json:"registry"`
	Format   manifest.Format `json:"format"`
	Entries  int             `json:"entries"`
}

// CheckOptions configures Check.
type CheckOptions struct {
	// Project is an optional project file used to mark lock-file entries
	// as direct or indirect.
	Project []byte
}

// UploadOptions configures Upload.
type UploadOptions struct {
	// Hint names the source (usually a file name) and is only logged.
	Hint string

	// Project is an optional project file used to mark lock-file entries
	// as direct or indirect before the list is stored.
	Project []byte
}

// Upload parses data, persists it as a new list and returns its token.
func (r *Runner) Upload(ctx context.Context, data []byte, opts UploadOptions) (*Upload, error) {
	if r.Codec == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no token codec configured")
	}
	res, err := r.parse(ctx, data)
	if err != nil {
		return nil, err
	}
	entries, err := r.markDirect(res, opts.Project)
	if err != nil {
		return nil, err
	}

	list, err := r.Store.CreateList(ctx, res.Registry, res.Format, entries)
	if err != nil {
		return nil, err
	}
	token := r.Codec.Encode(list.ID)

	r.Logger.Info("stored list",
		"source", opts.Hint,
		"registry", res.Registry,
		"format", res.Format,
		"entries", len(entries),
		"project", len(opts.Project) > 0,
		"id", token)

	return &Upload{
		ID:       token,
		URL:      "/lists/" + token,
		Registry: res.Registry,
		Format:   res.Format,
		Entries:  len(entries),
	}, nil
}

// Check parses and evaluates data without storing the list. Package
// histories are still read from and written to the store.
func (r *Runner) Check(ctx context.Context, data []byte, opts CheckOptions) (*Report, error) {
	res, err := r.parse(ctx, data)
	if err != nil {
		return nil, err
	}

	entries, err := r.markDirect(res, opts.Project)
	if err != nil {
		return nil, err
	}
	return r.evaluate(ctx, res.Registry, res.Format, entries)
}

// markDirect applies the direct dependencies declared by an optional
// pyproject.toml to the entries of res.
func (r *Runner) markDirect(res *manifest.Result, project []byte) ([]manifest.Entry, error) {
	if len(project) == 0 {
		return res.Entries, nil
	}
	if err := errors.ValidateUploadSize(len(project), MaxUploadSize); err != nil {
		return nil, err
	}
	declared, err := manifest.ParseAs(manifest.FormatPyProject, project, r.Registries)
	if err != nil {
		return nil, err
	}
	if declared.Registry != res.Registry {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"project file is for %s but the list is for %s", declared.Registry, res.Registry)
	}
	return manifest.MarkDirect(res.Entries, declared.Entries), nil
}

func (r *Runner) parse(ctx context.Context, data []byte) (res *manifest.Result, err error) {
	if err := errors.ValidateUploadSize(len(data), MaxUploadSize); err != nil {
		return nil, err
	}

	start := time.Now()
	observability.Pipeline().OnParseStart(ctx, "")
	defer func() {
		format, count := "", 0
		if res != nil {
			format, count = string(res.Format), len(res.Entries)
		}
		observability.Pipeline().OnParseComplete(ctx, format, count, time.Since(start), err)
	}()

	return manifest.Detect(data, r.Registries)
}
