package version

import "fmt"

// Injected at build time via -ldflags "-X frameworks/coursebook/pkg/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// ServiceName is used for logging, health and metric prefixes.
const ServiceName = "coursebook"

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

func GetInfo() Info {
	return Info{
		Service:   ServiceName,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	}
}

// GetShortCommit returns the first 7 characters of the commit hash.
func GetShortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// String renders a one-line banner for the CLI version command.
func String() string {
	info := GetInfo()
	return fmt.Sprintf("%s %s (%s, built %s)", info.Service, info.Version, GetShortCommit(), info.BuildDate)
}
