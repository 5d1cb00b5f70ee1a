// Package goproxy fetches release histories from a Go module proxy
// (https://proxy.golang.org by default).
//
//	client := goproxy.NewClient(backend, 6*time.Hour)
//	h, err := client.FetchHistory(ctx, "github.com/spf13/cobra", false)
//
// # Requests
//
//  1. /@v/list for the tagged versions
//  2. /@v/<version>.info for each version's commit time, fetched concurrently
//  3. /@v/<latest>.mod to read retract directives
//
// Versions covered by a retract directive in the latest go.mod are reported
// as yanked. Failure to read the go.mod is not an error.
//
// # Path Escaping
//
// Module paths and versions are escaped per the proxy protocol (uppercase
// becomes !lowercase) using golang.org/x/mod/module.
package goproxy
