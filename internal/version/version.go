package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionFile string

// planFormatVersion is bumped when the JSON plan layout changes
const planFormatVersion = "1.0.0"

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App returns the current version of viewmig
func App() string {
	return strings.TrimSpace(versionFile)
}

// PlanFormat returns the version of the JSON plan format
func PlanFormat() string {
	return planFormatVersion
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetBuildDate returns the git commit date
func GetBuildDate() string {
	return BuildDate
}

// Platform returns the OS/architecture combination
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
