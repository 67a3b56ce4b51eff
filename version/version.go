package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version can be set at build time, e.g.:
// go build -ldflags "-X github.com/vsariola/midivcs/version.Version=$(git describe --dirty)"
var Version string

// Revision is the short VCS revision the binary was built from, with a
// -dirty suffix for modified trees, or "" if the build info has none.
var Revision = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	settings := map[string]string{}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	rev := settings["vcs.revision"]
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && settings["vcs.modified"] == "true" {
		rev += "-dirty"
	}
	return rev
}()

// String returns the version, falling back to the revision, followed by the
// Go version.
func String() string {
	v := Version
	if v == "" {
		v = Revision
	}
	if v == "" {
		v = "devel"
	}
	return fmt.Sprintf("%s (%s)", v, runtime.Version())
}
