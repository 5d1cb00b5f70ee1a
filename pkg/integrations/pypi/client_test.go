package pypi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/depreview/depreview/pkg/cache"
	"github.com/depreview/depreview/pkg/integrations"
	"github.com/depreview/depreview/pkg/registry"
)

const flaskJSON = `{
  "info": {
    "name": "Flask",
    "summary": "A simple framework for building complex web applications.",
    "author": "Armin Ronacher",
    "home_page": "https://palletsprojects.com/p/flask",
    "project_urls": {
      "Documentation": "https://flask.palletsprojects.com/",
      "Source Code": "https://github.com/pallets/flask/"
    }
  },
  "releases": {
    "2.0.0": [
      {"upload_time_iso_8601": "2021-05-11T21:46:47.456417Z", "upload_time": "2021-05-11T21:46:47", "yanked": false},
      {"upload_time_iso_8601": "2021-05-11T21:46:45.123456Z", "upload_time": "2021-05-11T21:46:45", "yanked": false}
    ],
    "2.0.1": [
      {"upload_time_iso_8601": "2021-05-21T20:00:00.000000Z", "yanked": true},
      {"upload_time_iso_8601": "2021-05-21T20:00:01.000000Z", "yanked": false}
    ],
    "2.0.2": [
      {"upload_time_iso_8601": "2021-10-04T14:34:43.000000Z", "yanked": true}
    ],
    "0.1": [
      {"upload_time": "2010-04-16T00:00:00", "yanked": false}
    ],
    "3.0.0": [],
    "not a version": [
      {"upload_time_iso_8601": "2012-01-01T00:00:00Z", "yanked": false}
    ]
  }
}`

func date(s string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	t = t.UTC()
	return &t
}

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	backend, err := cache.NewMemoryCache(0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { backend.Close() })

	c := NewClient(backend, time.Hour)
	c.baseURL = serverURL
	return c
}

func TestClient_FetchHistory(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/flask/json" {
			w.Write([]byte(flaskJSON))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	h, err := c.FetchHistory(context.Background(), "FLASK", false)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}

	if h.Name != "Flask" {
		t.Errorf("Name = %s, want Flask", h.Name)
	}
	if h.Author != "Armin Ronacher" {
		t.Errorf("Author = %s", h.Author)
	}
	if h.Repository != "https://github.com/pallets/flask/" {
		t.Errorf("Repository = %s", h.Repository)
	}

	want := []registry.Version{
		{Version: "0.1", ReleaseDate: date("2010-04-16T00:00:00Z")},
		{Version: "2.0.0", ReleaseDate: date("2021-05-11T21:46:45.123456Z")},
		{Version: "2.0.1", ReleaseDate: date("2021-05-21T20:00:00Z")},
		{Version: "2.0.2", ReleaseDate: date("2021-10-04T14:34:43Z"), Yanked: true},
	}
	if diff := cmp.Diff(want, h.Versions); diff != "" {
		t.Errorf("Versions mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.FetchHistory(context.Background(), "flask", false); err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Errorf("second fetch should be served from cache, requests = %v", paths)
	}
}

func TestClient_FetchHistory_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := testClient(t, server.URL)

	_, err := c.FetchHistory(context.Background(), "missing-pkg", true)
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_FetchHistory_NormalizesName(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
		w.Write([]byte(`{"info": {"name": "Zope.Interface"}, "releases": {}}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	h, err := c.FetchHistory(context.Background(), "Zope_Interface", true)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/zope-interface/json" {
		t.Errorf("request path = %s, want /zope-interface/json", got)
	}
	if len(h.Versions) != 0 {
		t.Errorf("Versions = %v, want none", h.Versions)
	}
}

func TestRelease(t *testing.T) {
	tests := []struct {
		name   string
		builds []apiFile
		yanked bool
		date   bool
	}{
		{"all yanked", []apiFile{{UploadTimeISO: "2020-01-01T00:00:00Z", Yanked: true}}, true, true},
		{"one live build", []apiFile{{Yanked: true}, {Yanked: false}}, false, false},
		{"unparseable date", []apiFile{{UploadTime: "yesterday"}}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := release("1.0", tt.builds)
			if got.Yanked != tt.yanked {
				t.Errorf("Yanked = %v, want %v", got.Yanked, tt.yanked)
			}
			if (got.ReleaseDate != nil) != tt.date {
				t.Errorf("ReleaseDate = %v, want set = %v", got.ReleaseDate, tt.date)
			}
		})
	}
}
