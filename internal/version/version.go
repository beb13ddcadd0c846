// Package version reports the build version of taskweave.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var release string

// Commit is set at build time with
// -ldflags "-X github.com/ShayCichocki/taskweave/internal/version.Commit=<sha>".
var Commit string

// Get returns the release number from the VERSION file.
func Get() string {
	return strings.TrimSpace(release)
}

// String returns the release number followed by the short commit, when known.
func String() string {
	v := Get()
	if c := strings.TrimSpace(Commit); c != "" {
		if len(c) > 7 {
			c = c[:7]
		}
		v += " (" + c + ")"
	}
	return v
}
