package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/integrations"
	"github.com/depreview/depreview/pkg/pipeline"
	"github.com/depreview/depreview/pkg/registry"
)

const pins = `flask==2.0.0
click==8.0.0
jinja2==3.0.0
`

var evalTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type release struct {
	version string
	age     int // days before evalTime
}

type stubFetcher map[string][]release

func (s stubFetcher) FetchHistory(ctx context.Context, name string, refresh bool) (*integrations.History, error) {
	releases, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, integrations.ErrNotFound)
	}
	h := &integrations.History{Name: name, Author: "Pallets"}
	for _, r := range releases {
		at := evalTime.AddDate(0, 0, -r.age)
		h.Versions = append(h.Versions, registry.Version{Version: r.version, ReleaseDate: &at})
	}
	return h, nil
}

func testFetchers() map[string]pipeline.Fetcher {
	return map[string]pipeline.Fetcher{"pypi": stubFetcher{
		"flask":  {{"2.0.0", 400}, {"3.0.0", 100}},
		"click":  {{"8.0.0", 50}},
		"jinja2": {{"3.0.0", 200}, {"3.1.0", 40}},
	}}
}

// run executes the root command with args and returns its output.
func run(t *testing.T, env map[string]string, stdin string, args ...string) (string, error) {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	if _, ok := env["DEPREVIEW_CACHE_DIR"]; !ok {
		env["DEPREVIEW_CACHE_DIR"] = t.TempDir()
	}

	var out bytes.Buffer
	c := New(io.Discard, LogInfo)
	c.Out = &out
	c.Err = io.Discard
	c.Fetchers = testFetchers()
	c.Getenv = func(k string) string { return env[k] }

	root := c.RootCommand()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheck_JSON(t *testing.T) {
	path := writeFile(t, "requirements.txt", pins)

	out, err := run(t, nil, "", "check", path, "--format", "json", "--now", evalTime.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("check error = %v", err)
	}

	var rep pipeline.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if !rep.Now.Equal(evalTime) {
		t.Errorf("now = %v, want %v", rep.Now, evalTime)
	}

	want := map[string]freshness.Status{
		"flask":  freshness.StatusVeryOutdated,
		"click":  freshness.StatusOK,
		"jinja2": freshness.StatusOutdated,
	}
	for _, e := range rep.Entries {
		if got := e.Status(); got != want[e.Name] {
			t.Errorf("%s status = %q, want %q", e.Name, got, want[e.Name])
		}
	}
}

func TestCheck_Stdin(t *testing.T) {
	out, err := run(t, nil, pins, "check", "-", "--now", evalTime.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	for _, s := range []string{"flask", "click", "jinja2", "very outdated"} {
		if !strings.Contains(out, s) {
			t.Errorf("text output missing %q:\n%s", s, out)
		}
	}
}

func TestCheck_DOT(t *testing.T) {
	path := writeFile(t, "requirements.txt", pins)
	out, err := run(t, nil, "", "check", path, "-f", "dot", "--now", evalTime.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.HasPrefix(out, "digraph G {") || !strings.Contains(out, `"flask"`) {
		t.Errorf("unexpected DOT output:\n%s", out)
	}
}

func TestCheck_OutputFile(t *testing.T) {
	path := writeFile(t, "requirements.txt", pins)
	dest := filepath.Join(t.TempDir(), "report.json")

	out, err := run(t, nil, "", "check", path, "-f", "json", "-o", dest, "--now", evalTime.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Errorf("%s is not valid JSON", dest)
	}
}

func TestCheck_FailOn(t *testing.T) {
	path := writeFile(t, "requirements.txt", pins)
	now := evalTime.Format(time.RFC3339)

	if _, err := run(t, nil, "", "check", path, "-f", "json", "--now", now, "--fail-on", "yanked"); err != nil {
		t.Errorf("--fail-on yanked error = %v, want nil", err)
	}
	_, err := run(t, nil, "", "check", path, "-f", "json", "--now", now, "--fail-on", "outdated")
	if err == nil || !strings.Contains(err.Error(), "2 dependencies") {
		t.Errorf("--fail-on outdated error = %v, want 2 dependencies", err)
	}
}

func TestCheck_InvalidFlags(t *testing.T) {
	path := writeFile(t, "requirements.txt", pins)

	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"--format", "yaml"}},
		{"now", []string{"--now", "yesterday"}},
		{"fail-on", []string{"--fail-on", "stale"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, nil, "", append([]string{"check", path}, tt.args...)...)
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("error = %v, want %s", err, errors.ErrCodeInvalidInput)
			}
		})
	}
}

func TestCheck_UnknownFormat(t *testing.T) {
	path := writeFile(t, "notes.txt", "hello\n")
	_, err := run(t, nil, "", "check", path)
	if !errors.Is(err, errors.ErrCodeUnknownFormat) {
		t.Errorf("error = %v, want %s", err, errors.ErrCodeUnknownFormat)
	}
}

func TestPackage(t *testing.T) {
	out, err := run(t, nil, "", "package", "pypi", "Flask", "-f", "json")
	if err != nil {
		t.Fatalf("package error = %v", err)
	}
	var view pipeline.PackageView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if view.Name != "flask" || view.Redirect != "" || len(view.Versions) != 2 {
		t.Errorf("view = %+v", view)
	}
}

func TestPackage_Text(t *testing.T) {
	out, err := run(t, nil, "", "package", "pypi", "jinja2", "--limit", "1")
	if err != nil {
		t.Fatalf("package error = %v", err)
	}
	for _, s := range []string{"jinja2", "3.1.0", "Pallets", "1 older versions hidden"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}

func TestID_RoundTrip(t *testing.T) {
	env := map[string]string{"DEPREVIEW_SECRET": "cli test secret"}

	out, err := run(t, env, "", "id", "encode", "42")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	token := strings.TrimSpace(out)
	if token == "" || token == "42" {
		t.Fatalf("token = %q", token)
	}

	out, err = run(t, env, "", "id", "decode", token)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "42" {
		t.Errorf("decode(%s) = %s, want 42", token, got)
	}
}

func TestID_Errors(t *testing.T) {
	secret := map[string]string{"DEPREVIEW_SECRET": "cli test secret"}

	tests := []struct {
		name string
		env  map[string]string
		args []string
		code errors.Code
	}{
		{"no secret", nil, []string{"id", "encode", "1"}, errors.ErrCodeInvalidConfig},
		{"not a number", secret, []string{"id", "encode", "abc"}, errors.ErrCodeInvalidInput},
		{"bad token", secret, []string{"id", "decode", "nope"}, errors.ErrCodeInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.env, "", tt.args...)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestCompletion(t *testing.T) {
	out, err := run(t, nil, "", "completion", "bash")
	if err != nil {
		t.Fatalf("completion error = %v", err)
	}
	if !strings.Contains(out, "depreview") {
		t.Error("bash completion does not mention depreview")
	}
}
