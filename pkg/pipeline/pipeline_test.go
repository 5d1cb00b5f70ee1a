package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/freshness"
	"github.com/depreview/depreview/pkg/idcodec"
	"github.com/depreview/depreview/pkg/integrations"
	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/registry"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := t0.AddDate(0, 0, -n)
	return &t
}

const lockFile = `[[package]]
name = "Flask"
version = "2.0.0"
category = "main"

[package.dependencies]
click = ">=7.1.2"

[[package]]
name = "click"
version = "8.0.0"
category = "main"

[package.dependencies]

[metadata]
lock-version = "1.1"

[metadata.files]
flask = []
click = []
`

const projectFile = `[tool.poetry]
name = "app"

[tool.poetry.dependencies]
python = "^3.10"
Flask = "^2.0"
`

const pins = `flask==2.0.0
click==8.0.0
ghost==1.0
`

// fakeFetcher serves canned histories and counts calls per name.
type fakeFetcher struct {
	mu        sync.Mutex
	histories map[string]*integrations.History
	calls     map[string]int
	err       error
	delay     time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		histories: map[string]*integrations.History{
			"flask": {
				Name:       "Flask",
				Repository: "https://github.com/pallets/flask",
				Versions: []registry.Version{
					{Version: "2.0.0", ReleaseDate: daysAgo(200)},
					{Version: "2.1.0", ReleaseDate: daysAgo(120)},
					{Version: "3.0.0", ReleaseDate: daysAgo(5)},
				},
			},
			"click": {
				Name: "click",
				Versions: []registry.Version{
					{Version: "8.0.0", ReleaseDate: daysAgo(10)},
				},
			},
		},
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) FetchHistory(ctx context.Context, name string, refresh bool) (*integrations.History, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.histories[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, integrations.ErrNotFound)
	}
	return h, nil
}

func (f *fakeFetcher) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func newTestRunner(t *testing.T, f Fetcher) (*Runner, *time.Time) {
	t.Helper()
	codec, err := idcodec.New([]byte("pipeline test"))
	if err != nil {
		t.Fatal(err)
	}
	regs := registry.NewSet(registry.NewPyPI(), registry.NewGo())
	r := NewRunner(regs, nil, map[string]Fetcher{"pypi": f}, codec, log.New(io.Discard))
	now := t0
	r.Now = func() time.Time { return now }
	return r, &now
}

func entry(t *testing.T, rep *Report, name string) EntryReport {
	t.Helper()
	for _, e := range rep.Entries {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no entry %q in report", name)
	return EntryReport{}
}

func TestUploadAndReport(t *testing.T) {
	f := newFakeFetcher()
	r, _ := newTestRunner(t, f)
	ctx := context.Background()

	up, err := r.Upload(ctx, []byte(lockFile), UploadOptions{Hint: "poetry.lock"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(up.ID) != idcodec.TokenLength {
		t.Errorf("Upload().ID = %q", up.ID)
	}
	if up.URL != "/lists/"+up.ID {
		t.Errorf("Upload().URL = %q", up.URL)
	}
	if up.Format != manifest.FormatPoetryLock || up.Registry != "pypi" || up.Entries != 2 {
		t.Errorf("Upload() = %+v", up)
	}

	rep, err := r.Report(ctx, up.ID)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if rep.ID != up.ID || rep.CreatedAt == nil {
		t.Errorf("Report() id = %q, created = %v", rep.ID, rep.CreatedAt)
	}

	flask := entry(t, rep, "flask")
	if flask.Resolved == nil || flask.Resolved.Version.Version != "2.0.0" {
		t.Fatalf("flask resolved = %+v", flask.Resolved)
	}
	if flask.Status() != freshness.StatusVeryOutdated {
		t.Errorf("flask status = %s, want %s", flask.Status(), freshness.StatusVeryOutdated)
	}
	if flask.Latest == nil || flask.Latest.Version.Version != "3.0.0" {
		t.Errorf("flask latest = %+v", flask.Latest)
	}
	if flask.DisplayName != "Flask" {
		t.Errorf("flask display name = %q", flask.DisplayName)
	}
	if flask.PURL != "pkg:pypi/flask@2.0.0" {
		t.Errorf("flask purl = %q", flask.PURL)
	}
	if flask.Link != "https://pypi.org/project/flask/" {
		t.Errorf("flask link = %q", flask.Link)
	}

	click := entry(t, rep, "click")
	if click.Status() != freshness.StatusOK {
		t.Errorf("click status = %s, want ok", click.Status())
	}

	if rep.Tree.Tree {
		t.Error("lock file without direct flags should give a flat list")
	}
	if rep.Summary[freshness.StatusOK] != 1 || rep.Summary[freshness.StatusVeryOutdated] != 1 {
		t.Errorf("Summary = %v", rep.Summary)
	}
}

func TestReport_InvalidToken(t *testing.T) {
	r, _ := newTestRunner(t, newFakeFetcher())

	if _, err := r.Report(context.Background(), "not-a-token"); !errors.Is(err, errors.ErrCodeInvalidID) {
		t.Errorf("Report() error = %v, want %s", err, errors.ErrCodeInvalidID)
	}
	if _, err := r.Report(context.Background(), r.Codec.Encode(999)); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Report() error = %v, want %s", err, errors.ErrCodeNotFound)
	}
}

func TestUpload_Rejects(t *testing.T) {
	r, _ := newTestRunner(t, newFakeFetcher())

	tests := []struct {
		name string
		data string
		code errors.Code
	}{
		{"empty", "", errors.ErrCodeInvalidInput},
		{"prose", "hello world\n", errors.ErrCodeUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Upload(context.Background(), []byte(tt.data), UploadOptions{Hint: tt.name})
			if !errors.Is(err, tt.code) {
				t.Errorf("Upload() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestUpload_WithProject(t *testing.T) {
	r, _ := newTestRunner(t, newFakeFetcher())
	ctx := context.Background()

	up, err := r.Upload(ctx, []byte(lockFile), UploadOptions{Project: []byte(projectFile)})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	rep, err := r.Report(ctx, up.ID)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if !rep.Tree.Tree {
		t.Fatal("expected a tree for a list uploaded with its project file")
	}
	if got := entry(t, rep, "click").Direct; got != manifest.DirectNo {
		t.Errorf("click direct = %v, want %v", got, manifest.DirectNo)
	}

	if _, err := r.Upload(ctx, []byte(lockFile), UploadOptions{Project: []byte("not = [toml")}); err == nil {
		t.Error("Upload() with a broken project file should fail")
	}
}

func TestCheck_WithProject(t *testing.T) {
	r, _ := newTestRunner(t, newFakeFetcher())

	rep, err := r.Check(context.Background(), []byte(lockFile), CheckOptions{Project: []byte(projectFile)})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if rep.ID != "" {
		t.Errorf("Check() should not assign an id, got %q", rep.ID)
	}
	if !rep.Tree.Tree {
		t.Fatal("expected a tree once direct flags are known")
	}
	if len(rep.Tree.Nodes) != 1 || rep.Tree.Nodes[0].Name != "Flask" {
		t.Fatalf("roots = %+v", rep.Tree.Nodes)
	}
	children := rep.Tree.Nodes[0].Children
	if len(children) != 1 || children[0].Name != "click" {
		t.Errorf("Flask children = %+v", children)
	}
}

func TestCheck_UnknownPackage(t *testing.T) {
	f := newFakeFetcher()
	r, _ := newTestRunner(t, f)

	rep, err := r.Check(context.Background(), []byte(pins), CheckOptions{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	ghost := entry(t, rep, "ghost")
	if ghost.Resolved != nil || ghost.Error == "" {
		t.Errorf("ghost = %+v, want an error and no resolution", ghost)
	}
	if ghost.PURL != "pkg:pypi/ghost" {
		t.Errorf("ghost purl = %q", ghost.PURL)
	}
	if rep.Summary[""] != 1 {
		t.Errorf("Summary = %v", rep.Summary)
	}
}

func TestRefresh(t *testing.T) {
	f := newFakeFetcher()
	r, now := newTestRunner(t, f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Check(ctx, []byte(pins), CheckOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.count("flask"); got != 1 {
		t.Errorf("flask fetched %d times, want 1 while fresh", got)
	}

	*now = now.Add(DefaultRefreshAge + time.Minute)
	if _, err := r.Check(ctx, []byte(pins), CheckOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := f.count("flask"); got != 2 {
		t.Errorf("flask fetched %d times, want 2 after going stale", got)
	}

	r.Refresh = true
	if _, err := r.Check(ctx, []byte(pins), CheckOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := f.count("flask"); got != 3 {
		t.Errorf("flask fetched %d times, want 3 when forced", got)
	}
}

func TestRefresh_StaleFallback(t *testing.T) {
	f := newFakeFetcher()
	r, now := newTestRunner(t, f)
	ctx := context.Background()

	if _, err := r.Package(ctx, "pypi", "flask"); err != nil {
		t.Fatal(err)
	}

	f.err = fmt.Errorf("boom: %w", integrations.ErrNetwork)
	*now = now.Add(30 * 24 * time.Hour)

	view, err := r.Package(ctx, "pypi", "flask")
	if err != nil {
		t.Fatalf("Package() error = %v, want stale history", err)
	}
	if !view.LastRefresh.Equal(t0) {
		t.Errorf("LastRefresh = %v, want %v", view.LastRefresh, t0)
	}
}

func TestConcurrentReportsFetchOnce(t *testing.T) {
	f := newFakeFetcher()
	f.delay = 20 * time.Millisecond
	r, _ := newTestRunner(t, f)

	var wg sync.WaitGroup
	var failed atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Check(context.Background(), []byte(pins), CheckOptions{}); err != nil {
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	if failed.Load() != 0 {
		t.Fatalf("%d checks failed", failed.Load())
	}
	if got := f.count("flask"); got != 1 {
		t.Errorf("flask fetched %d times, want 1", got)
	}
}

func TestPackage(t *testing.T) {
	r, _ := newTestRunner(t, newFakeFetcher())
	ctx := context.Background()

	view, err := r.Package(ctx, "pypi", "Flask")
	if err != nil {
		t.Fatal(err)
	}
	if view.Redirect != "flask" || view.Versions != nil {
		t.Errorf("Package(Flask) = %+v, want redirect to flask", view)
	}

	view, err = r.Package(ctx, "pypi", "flask")
	if err != nil {
		t.Fatal(err)
	}
	if view.Redirect != "" {
		t.Errorf("Redirect = %q", view.Redirect)
	}
	if len(view.Versions) != 3 || view.Versions[0].Version.Version != "3.0.0" {
		t.Errorf("Versions = %+v", view.Versions)
	}
	if view.PURL != "pkg:pypi/flask@3.0.0" {
		t.Errorf("PURL = %q", view.PURL)
	}
	if view.Repository != "https://github.com/pallets/flask" {
		t.Errorf("Repository = %q", view.Repository)
	}

	if _, err := r.Package(ctx, "pypi", "ghost"); !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("Package(ghost) error = %v, want %s", err, errors.ErrCodePackageNotFound)
	}
	if _, err := r.Package(ctx, "npm", "left-pad"); !errors.Is(err, errors.ErrCodeInvalidRegistry) {
		t.Errorf("Package(npm) error = %v, want %s", err, errors.ErrCodeInvalidRegistry)
	}
	if _, err := r.Package(ctx, "golang", "golang.org/x/mod"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("Package(golang) error = %v, want %s", err, errors.ErrCodeUnsupported)
	}
}

func TestOverrides(t *testing.T) {
	r, _ := newTestRunner(t, newFakeFetcher())
	r.Overrides = map[string]map[string]freshness.Status{
		"pypi/flask": {"2.0.0": freshness.StatusOK},
	}

	rep, err := r.Check(context.Background(), []byte(pins), CheckOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := entry(t, rep, "flask").Status(); got != freshness.StatusOK {
		t.Errorf("flask status = %s, want ok", got)
	}
}

func TestPURL(t *testing.T) {
	tests := []struct {
		reg     registry.Registry
		name    string
		version string
		want    string
	}{
		{registry.NewPyPI(), "requests", "2.31.0", "pkg:pypi/requests@2.31.0"},
		{registry.NewPyPI(), "requests", "", "pkg:pypi/requests"},
		{registry.NewGo(), "github.com/spf13/cobra", "v1.10.1", "pkg:golang/github.com/spf13/cobra@v1.10.1"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := PURL(tt.reg, tt.name, tt.version); got != tt.want {
				t.Errorf("PURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
