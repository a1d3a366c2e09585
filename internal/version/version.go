package version

import (
	"fmt"
	"runtime"
)

// Stamped at release time:
//
//	go build -ldflags "-X github.com/soyeahso/shaperelay/internal/version.Version=0.3.0
//	  -X github.com/soyeahso/shaperelay/internal/version.Commit=$(git rev-parse HEAD)
//	  -X github.com/soyeahso/shaperelay/internal/version.Date=$(date -u +%F)"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns the long version line printed by `shaperelay version`.
func Info() string {
	return fmt.Sprintf("shaperelay %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on every outbound HTTP request the relay makes.
func UserAgent() string {
	return "shaperelay/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
