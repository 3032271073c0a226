// Package buildinfo carries the version identity stamped into the
// binary via -ldflags "-X orbital/internal/buildinfo.Version=...".
// The defaults describe a plain go build with no stamping.
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short is the compact identifier for window titles and log fields:
// the stamped version if there is one, else the commit, else "dev".
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// Line is the full identity the -version flag and the shell version
// command print.
func Line() string {
	return fmt.Sprintf("orbital %s %s %s", Version, Commit, Date)
}
