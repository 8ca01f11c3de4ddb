// Package version carries build metadata stamped in with -ldflags -X.
package version

import "fmt"

// Program is the binary name reported by String.
const Program = "lanetrack"

var (
	// Version is the release tag, "dev" for local builds
	Version = "dev"
	// GitSHA is the commit the binary was built from
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the one-line version banner printed by -version.
func String() string {
	return fmt.Sprintf("%s %s (%s, built %s)", Program, Version, GitSHA, BuildTime)
}
