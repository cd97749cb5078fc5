// Package version holds build metadata stamped in at release time, e.g.
//
//	-ldflags "-X .../internal/version.Version=v0.3.0 -X .../internal/version.Commit=$(git rev-parse --short HEAD)"
package version

var (
	Version = "dev"
	Commit  = "unknown"
)
