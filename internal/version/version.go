package version

import "fmt"

var (
	// Version is the semantic version of exitwatcher. Overridden at build time via -ldflags.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String renders build information on one line.
func String() string {
	return fmt.Sprintf("exitwatcher %s (commit %s, built %s)", Version, Commit, BuildDate)
}
