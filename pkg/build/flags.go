// SPDX-License-Identifier: MIT
//
// Package build exposes the version metadata stamped into the binary with
// linker flags:
//
//	go build -ldflags "-X panadapter/pkg/build.buildVersion=0.3.0 -X panadapter/pkg/build.buildCommit=$(git rev-parse --short HEAD)"
//
// Development builds carry no flags and report "dev".
package build

import (
	"fmt"
	"strings"
)

// Info is the stamped build metadata.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	current      = Info{Name: "panadapter", Time: "unknown", Commit: "unknown", Version: "dev"}
)

// Initialize copies the linker-provided values into Current. It reports the
// flags that were not set; the defaults stay in place for those.
func Initialize() error {
	var missing []string
	for _, f := range []struct {
		flag string
		src  string
		dst  *string
	}{
		{"buildName", buildName, &current.Name},
		{"buildTime", buildTime, &current.Time},
		{"buildCommit", buildCommit, &current.Commit},
		{"buildVersion", buildVersion, &current.Version},
	} {
		if f.src == "" {
			missing = append(missing, f.flag)
			continue
		}
		*f.dst = f.src
	}
	if len(missing) > 0 {
		return fmt.Errorf("build flags not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Current returns the build metadata.
func Current() Info { return current }

// Short formats the version and commit, e.g. "0.3.0@1a2b3c4".
func Short() string {
	if current.Commit == "unknown" {
		return current.Version
	}
	return current.Version + "@" + current.Commit
}
