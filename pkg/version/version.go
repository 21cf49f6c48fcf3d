// Package version exposes build identification, stamped via ldflags.
package version

import "runtime"

var (
	// Version is the release tag, or "dev" for unstamped builds.
	Version = "dev"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// GitCommit is the short hash of the commit the binary was built from.
	GitCommit = "unknown"

	// GoVersion is the toolchain that compiled the binary.
	GoVersion = runtime.Version()
)

// Info collects all build identification into one map for status endpoints.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
		"goVersion": GoVersion,
	}
}
