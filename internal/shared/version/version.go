// Package version carries build information stamped in at link time.
package version

import "fmt"

var (
	// Version is the semantic version of the broker build.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)

// String formats the build information for the --version flag.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
}
