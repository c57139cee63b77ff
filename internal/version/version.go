// Package version holds build information set through -ldflags:
//
//	go build -ldflags "-X github.com/dshills/lfind/internal/version.Version=1.2.0"
package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the JSON form of the build information
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the build information
func GetInfo() Info {
	return Info{
		Version:   Short(),
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Short returns the version alone. Release versions are normalized, so
// "v1.2" prints as "1.2.0".
func Short() string {
	if v, err := semver.NewVersion(Version); err == nil {
		return v.String()
	}
	return Version
}

// String returns a one-line description
func String() string {
	return fmt.Sprintf("lfind %s (commit %s, built %s, %s)", Short(), Commit, Date, runtime.Version())
}
