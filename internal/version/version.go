// Package version carries build information injected at link time.
package version

import "fmt"

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = "unknown"
)

// SetInfo overrides build information with non-empty values.
func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// String returns a single-line build description.
func String() string {
	return fmt.Sprintf("insightd %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
