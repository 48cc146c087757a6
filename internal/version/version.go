// Package version exposes build-time version information.
// Values are injected at build time via -ldflags:
//
//	go build -ldflags "-X github.com/AvaQuinn/storesight/internal/version.Version=v0.1.0 \
//	  -X github.com/AvaQuinn/storesight/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/AvaQuinn/storesight/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import "fmt"

var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// Date is the UTC build timestamp.
	Date = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable version line.
func Info() string {
	return fmt.Sprintf("storesight %s (commit %s, built %s)", Version, Commit, Date)
}

// Map returns version fields for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
