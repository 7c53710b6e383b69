package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/threadpager"

// buildVersion is set via -ldflags "-X pkt.systems/threadpager/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Version  string
	Module   string
	Revision string
	Dirty    bool
}

// Current returns the best available version string.
func Current() string {
	return Read().Version
}

// Read collects version details from the linker flag and build info.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

func fromBuildInfo(info *debug.BuildInfo, linked string) Info {
	out := Info{Module: defaultModule}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		vcs := readVCS(info)
		out.Revision = vcs.revision
		out.Dirty = vcs.modified
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			out.Version = strings.TrimSuffix(v, "+dirty")
		} else {
			out.Version = vcs.pseudo()
		}
	}
	if v := strings.TrimSpace(linked); v != "" {
		out.Version = strings.TrimSuffix(v, "+dirty")
	}
	if out.Version == "" {
		out.Version = "v0.0.0-unknown"
	}
	return out
}

type vcsInfo struct {
	revision string
	when     time.Time
	modified bool
}

func readVCS(info *debug.BuildInfo) vcsInfo {
	var out vcsInfo
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				out.when = parsed
			}
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

// pseudo renders a Go pseudo-version from VCS stamps, or "" without them.
func (v vcsInfo) pseudo() string {
	if v.revision == "" || v.when.IsZero() {
		return ""
	}
	rev := v.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + v.when.UTC().Format("20060102150405") + "-" + rev
}
