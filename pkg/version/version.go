package version

import (
	"fmt"
	"runtime"
)

const unknown = "UNKNOWN"

// BinaryName is the name of the binary, set at build time
var BinaryName = "weatherlog"

// Version is substituted with the release version at build time
var Version = unknown

// BuildDate is substituted with the build date at build time
var BuildDate = unknown

// VersionString returns a verbose version string including the build date
func VersionString() string {
	return fmt.Sprintf("%s (%s/%s). build date: %s", Version, runtime.GOOS, runtime.GOARCH, BuildDate)
}
