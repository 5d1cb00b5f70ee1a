package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/idcodec"
	"github.com/depreview/depreview/pkg/integrations"
	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/pipeline"
	"github.com/depreview/depreview/pkg/registry"
)

const pins = `flask==2.0.0
click==8.0.0
jinja2==3.0.0
`

type stubFetcher map[string][]string

func (s stubFetcher) FetchHistory(ctx context.Context, name string, refresh bool) (*integrations.History, error) {
	versions, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, integrations.ErrNotFound)
	}
	released := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &integrations.History{Name: name}
	for _, v := range versions {
		h.Versions = append(h.Versions, registry.Version{Version: v, ReleaseDate: &released})
	}
	return h, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	codec, err := idcodec.New([]byte("server test"))
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard)
	fetchers := map[string]pipeline.Fetcher{"pypi": stubFetcher{
		"flask":  {"2.0.0", "3.0.0"},
		"click":  {"8.0.0"},
		"jinja2": {"3.0.0"},
	}}
	runner := pipeline.NewRunner(registry.NewSet(registry.NewPyPI(), registry.NewGo()), nil, fetchers, codec, logger)

	srv := httptest.NewServer(NewRouter(Options{
		Runner:   runner,
		Logger:   logger,
		Breakers: func() map[string]string { return map[string]string{"pypi.org": "closed"} },
	}))
	t.Cleanup(srv.Close)
	return srv
}

// noRedirect stops the client from following 301s so tests can inspect them.
var noRedirect = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func upload(t *testing.T, srv *httptest.Server) pipeline.Upload {
	t.Helper()
	resp, err := http.Post(srv.URL+"/lists", "text/plain", strings.NewReader(pins))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /lists status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var up pipeline.Upload
	decode(t, resp, &up)
	return up
}

func TestUploadAndReport(t *testing.T) {
	srv := newTestServer(t)
	up := upload(t, srv)

	if up.URL != "/lists/"+up.ID {
		t.Errorf("url = %q, want /lists/%s", up.URL, up.ID)
	}

	resp, err := http.Get(srv.URL + up.URL)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", up.URL, resp.StatusCode)
	}
	var rep pipeline.Report
	decode(t, resp, &rep)

	if rep.ID != up.ID || len(rep.Entries) != 3 {
		t.Errorf("report id = %q, entries = %d", rep.ID, len(rep.Entries))
	}
	for _, e := range rep.Entries {
		if e.Resolved == nil {
			t.Errorf("%s unresolved: %s", e.Name, e.Error)
		}
	}
}

func TestUpload_Multipart(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("list", "requirements.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(pins))
	mw.Close()

	resp, err := http.Post(srv.URL+"/lists", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/lists/") {
		t.Errorf("Location = %q", loc)
	}
	resp.Body.Close()
}

func TestUpload_MultipartWithProject(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, content := range map[string]string{
		"list":    pins,
		"project": "[tool.poetry.dependencies]\npython = \"^3.10\"\nflask = \"^2.0\"\n",
	} {
		fw, err := mw.CreateFormFile(field, field+".txt")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()

	resp, err := http.Post(srv.URL+"/lists", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var up pipeline.Upload
	decode(t, resp, &up)

	resp, err = http.Get(srv.URL + up.URL)
	if err != nil {
		t.Fatal(err)
	}
	var rep pipeline.Report
	decode(t, resp, &rep)

	if !rep.Tree.Tree {
		t.Fatal("expected a tree when the project file is uploaded with the list")
	}
	for _, e := range rep.Entries {
		want := manifest.DirectOf(e.Name == "flask")
		if e.Direct != want {
			t.Errorf("%s direct = %v, want %v", e.Name, e.Direct, want)
		}
	}
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad token", http.MethodGet, "/lists/nope", "", http.StatusNotFound, "INVALID_ID"},
		{"unknown format", http.MethodPost, "/lists", "hello\n", http.StatusBadRequest, "UNKNOWN_FORMAT"},
		{"empty upload", http.MethodPost, "/lists", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown registry", http.MethodGet, "/p/npm/left-pad", "", http.StatusBadRequest, "INVALID_REGISTRY"},
		{"unknown package", http.MethodGet, "/p/pypi/ghost", "", http.StatusNotFound, "PACKAGE_NOT_FOUND"},
		{"no fetcher", http.MethodGet, "/p/golang/golang.org/x/mod", "", http.StatusNotImplemented, "UNSUPPORTED"},
		{"no route", http.MethodGet, "/nowhere", "", http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var body errorBody
			decode(t, resp, &body)
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q (%s)", body.Code, tt.code, body.Error)
			}
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	srv := newTestServer(t)

	big := strings.Repeat("a", pipeline.MaxUploadSize+128*1024)
	resp, err := http.Post(srv.URL+"/lists", "text/plain", strings.NewReader(big))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusRequestEntityTooLarge)
	}
}

func TestPackage(t *testing.T) {
	srv := newTestServer(t)

	resp, err := noRedirect.Get(srv.URL + "/p/pypi/Flask")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMovedPermanently)
	}
	if loc := resp.Header.Get("Location"); loc != "/p/pypi/flask" {
		t.Errorf("Location = %q, want /p/pypi/flask", loc)
	}

	resp, err = http.Get(srv.URL + "/p/pypi/flask")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view pipeline.PackageView
	decode(t, resp, &view)
	if view.Name != "flask" || len(view.Versions) != 2 {
		t.Errorf("view = %+v", view)
	}
	if view.Latest == nil || view.Latest.Version.Version != "3.0.0" {
		t.Errorf("latest = %+v", view.Latest)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(resp.Header.Get(RequestIDHeader)); err != nil {
		t.Errorf("%s = %q, want a uuid", RequestIDHeader, resp.Header.Get(RequestIDHeader))
	}
	var body healthBody
	decode(t, resp, &body)
	if body.Status != "ok" || body.Breakers["pypi.org"] != "closed" {
		t.Errorf("health = %+v", body)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	srv := newTestServer(t)
	id := uuid.NewString()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != id {
		t.Errorf("%s = %q, want %q", RequestIDHeader, got, id)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("plain"), http.StatusInternalServerError},
		{errors.New(errors.ErrCodeInternal, "boom"), http.StatusInternalServerError},
		{errors.New(errors.ErrCodeNotFound, "gone"), http.StatusNotFound},
		{errors.New(errors.ErrCodeInvalidLockFile, "bad"), http.StatusBadRequest},
		{errors.Wrap(errors.ErrCodeNetwork, io.EOF, "fetch"), http.StatusBadGateway},
		{fmt.Errorf("outer: %w", errors.New(errors.ErrCodeInvalidID, "x")), http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
