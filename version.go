package metastream

import "runtime"

// Version is the semantic version of the metastream library.
const Version = "0.2.0"

// VersionInfo contains detailed version information.
type VersionInfo struct {
	Version   string
	GitCommit string // set via ldflags
	BuildTime string // set via ldflags
	GoVersion string
}

// GetVersionInfo returns detailed version information. GitCommit and
// BuildTime are populated at build time:
//
//	go build -ldflags="-X github.com/simonhull/metastream.gitCommit=$(git rev-parse HEAD) \
//	  -X github.com/simonhull/metastream.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: gitCommit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

var (
	gitCommit = "unknown"
	buildTime = "unknown"
)
