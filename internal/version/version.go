package version

import (
	"runtime"
)

// Build-time variables set by ldflags during build
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info describes the running binary. It is written into every support dump
// so the receiving side knows which collector produced it.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the current binary
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns version with build info
func (i Info) String() string {
	return i.Version + " (" + i.GitCommit + ") built on " + i.BuildDate
}
