// Package buildinfo carries the values stamped at link time with
// -ldflags "-X github.com/and161185/csm-transport/internal/buildinfo.BuildVersion=...".
package buildinfo

import (
	"fmt"
	"io"
	"os"
)

var (
	BuildVersion string
	BuildDate    string
	BuildCommit  string
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Version returns BuildVersion, or "dev" for unstamped builds.
func Version() string {
	if BuildVersion == "" {
		return "dev"
	}
	return BuildVersion
}

// WriteBuildInfo writes the build values to w.
func WriteBuildInfo(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(BuildVersion))
	fmt.Fprintf(w, "Build date: %s\n", orNA(BuildDate))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(BuildCommit))
}

func PrintBuildInfo() {
	WriteBuildInfo(os.Stdout)
}
