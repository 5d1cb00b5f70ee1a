// Package pypi fetches release histories from the Python Package Index JSON
// API (https://pypi.org/pypi/<name>/json).
//
//	client := pypi.NewClient(backend, 6*time.Hour)
//	h, err := client.FetchHistory(ctx, "Flask", false) // false = use cache
//
// # Release rules
//
// A release contributes a version only when it has at least one uploaded
// file and its version string is valid PEP 440. The release date is the
// earliest upload among its files, and the release counts as yanked only if
// every file is yanked.
package pypi
