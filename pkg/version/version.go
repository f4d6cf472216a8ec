// Package version derives the build identity reported in logs and
// user-agent strings.
package version

import "runtime/debug"

// AppName identifies the application in version strings.
const AppName = "chronicle"

// commitOverride is injected with -ldflags for builds where VCS
// metadata is stripped, such as container images built from a tarball.
var commitOverride string

// GitCommit is the short commit hash, or "dev" when nothing usable is
// available (go test, non-git checkouts).
var GitCommit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return shorten(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shorten(s.Value)
			}
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "chronicle/<commit>".
func Full() string {
	return AppName + "/" + GitCommit
}
