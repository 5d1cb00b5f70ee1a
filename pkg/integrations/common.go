package integrations

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/dnscache"

	"github.com/depreview/depreview/pkg/registry"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a package doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrRateLimited is returned when the registry answers 429.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrUpstreamDown is returned while a host's circuit breaker is open.
	ErrUpstreamDown = errors.New("upstream registry unavailable")
)

// History is a package's release history as reported by its registry.
type History struct {
	Name        string             `json:"name"` // registry spelling, not normalized
	Author      string             `json:"author,omitempty"`
	Description string             `json:"description,omitempty"`
	Repository  string             `json:"repository,omitempty"`
	Versions    []registry.Version `json:"versions"`
}

var (
	resolverOnce sync.Once
	resolver     *dnscache.Resolver
)

func sharedResolver() *dnscache.Resolver {
	resolverOnce.Do(func() {
		resolver = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				resolver.Refresh(true)
			}
		}()
	})
	return resolver
}

// NewHTTPClient creates an HTTP client with a standard timeout for registry
// requests. Host lookups go through a shared DNS cache.
func NewHTTPClient() *http.Client {
	r := sharedResolver()
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: httpTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := r.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				var lastErr error
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
					lastErr = err
				}
				return nil, fmt.Errorf("dial %s: %w", addr, lastErr)
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, and git+ prefixes, and removes .git suffixes.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}

// repoKeys are the project URL labels, lowercased, that name a source
// repository, in order of preference.
var repoKeys = []string{"source", "source code", "repository"}

var forgeURLRE = regexp.MustCompile(`^https?://(github\.com|gitlab\.com|codeberg\.org)(?:/.*)?$`)

// RepositoryURL picks the source repository from a package's labelled URLs.
// Labels are matched case-insensitively. When none names a repository, the
// homepage is used if it is hosted on a known forge or ends in ".git".
func RepositoryURL(urls map[string]string, homepage string) string {
	labels := make([]string, 0, len(urls))
	for k := range urls {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	lower := make(map[string]string, len(urls))
	for _, k := range labels {
		lk := strings.ToLower(k)
		if _, dup := lower[lk]; !dup && urls[k] != "" {
			lower[lk] = urls[k]
		}
	}
	for _, key := range repoKeys {
		if u, ok := lower[key]; ok {
			return u
		}
	}
	if homepage != "" && (forgeURLRE.MatchString(homepage) || strings.HasSuffix(homepage, ".git")) {
		return homepage
	}
	return ""
}

// URLEncode percent-encodes a string for use in URL paths.
func URLEncode(s string) string { return url.PathEscape(s) }
