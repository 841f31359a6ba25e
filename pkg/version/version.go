// Package version carries build information for the mindvault binary.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at release time:
//
//	-X github.com/mindvault/mindvault/pkg/version.Version=v1.2.3
//	-X github.com/mindvault/mindvault/pkg/version.Commit=abc1234
//	-X github.com/mindvault/mindvault/pkg/version.Date=2026-08-25T00:00:00Z
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns the full version line.
func String() string {
	return fmt.Sprintf("mindvault %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version.
func Short() string {
	return Version
}
