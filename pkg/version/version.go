// Package version reports how the herd binary was built. The variables
// are set with -ldflags "-X github.com/rzbill/herd/pkg/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

// ShortCommit is Commit cut to eight characters.
func ShortCommit() string {
	if len(Commit) > 8 {
		return Commit[:8]
	}
	return Commit
}

// Info is the one-line form printed by "herd version".
func Info() string {
	return fmt.Sprintf("Herd %s (%s) - %s %s/%s", Version, ShortCommit(), BuildTime, runtime.GOOS, runtime.GOARCH)
}

// Map is the structured form printed by "herd version -o yaml".
func Map() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"buildTime": BuildTime,
		"goVersion": runtime.Version(),
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
	}
}
