// Package version holds build metadata stamped in via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag, or a dev marker for untagged builds.
	GitRelease = "dev"

	// GitCommit is the short hash of the commit the binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the timestamp of that commit.
	GitCommitDate = "unknown"
)

// GoInfo describes the Go toolchain and platform of the running binary.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
