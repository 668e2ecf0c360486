// Package version exposes build metadata injected via -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables, e.g.
//
//	go build -ldflags "-X faqbot/internal/version.Version=v1.2.0 -X faqbot/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GitDirty  = ""
)

// Info returns the version string, marked -dirty for builds from a
// modified tree.
func Info() string {
	v := Version
	if GitDirty == "true" && !strings.HasSuffix(v, "-dirty") {
		v += "-dirty"
	}
	return v
}

// Full returns Info plus the short commit when known.
func Full() string {
	info := Info()
	if len(GitCommit) >= 7 && GitCommit != "unknown" {
		info += fmt.Sprintf(" (%s)", GitCommit[:7])
	}
	return info
}

// BuildInfo is the JSON shape served by /health.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build metadata of the running binary.
func Get() BuildInfo {
	return BuildInfo{
		Version:   Info(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// UserAgent identifies faqbot in outbound HTTP requests.
func UserAgent() string {
	return "faqbot/" + Info()
}
