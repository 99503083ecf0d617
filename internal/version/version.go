// Package version carries enrichgpt build metadata.
//
// The variables are stamped at link time:
//
//	go build -ldflags "-X github.com/jmylchreest/enrichgpt/internal/version.Version=0.3.0 \
//	  -X github.com/jmylchreest/enrichgpt/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown"
)

// Info is the structured form printed by `enrichgpt version -o json`.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Dirty     bool   `json:"dirty" yaml:"dirty"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the current build info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version, suffixed with -dirty for modified trees.
func String() string {
	if Dirty == "true" {
		return Version + "-dirty"
	}
	return Version
}

// UserAgent is sent with every completion request.
func UserAgent() string {
	return fmt.Sprintf("enrichgpt/%s (%s)", String(), runtime.GOOS)
}

// HumanText renders the multi-line form used by the text output format.
func (i Info) HumanText() string {
	var sb strings.Builder
	v := i.Version
	if i.Dirty {
		v += "-dirty"
	}
	fmt.Fprintf(&sb, "enrichgpt %s\n", v)
	fmt.Fprintf(&sb, "  commit:  %s\n", i.Commit)
	fmt.Fprintf(&sb, "  built:   %s\n", i.BuildDate)
	fmt.Fprintf(&sb, "  go:      %s\n", i.GoVersion)
	fmt.Fprintf(&sb, "  platform: %s", i.Platform)
	return sb.String()
}
