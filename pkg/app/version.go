package app

import (
	"github.com/kart-io/version"
)

// GetVersion returns the git version stamped at build time via the
// kart-io/version ldflags.
func GetVersion() string {
	return version.Get().GitVersion
}

// GetVersionInfo returns the full build information: git version, commit,
// tree state, build date, Go version, and platform.
func GetVersionInfo() version.Info {
	return version.Get()
}
