// SPDX-License-Identifier: MIT
package build

import (
	"strings"
	"testing"
)

func restore(t *testing.T) {
	t.Helper()
	name, tm, commit, version, info := buildName, buildTime, buildCommit, buildVersion, current
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion, current = name, tm, commit, version, info
	})
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		flags       [4]string
		wantMissing string
		wantShort   string
	}{
		{"all set", [4]string{"panadapter", "2026-01-02", "abc1234", "0.3.0"}, "", "0.3.0@abc1234"},
		{"no commit", [4]string{"panadapter", "2026-01-02", "", "0.3.0"}, "buildCommit", "0.3.0"},
		{"development", [4]string{}, "buildName, buildTime, buildCommit, buildVersion", "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore(t)
			current = Info{Name: "panadapter", Time: "unknown", Commit: "unknown", Version: "dev"}
			buildName, buildTime, buildCommit, buildVersion = tt.flags[0], tt.flags[1], tt.flags[2], tt.flags[3]

			err := Initialize()
			switch {
			case tt.wantMissing == "" && err != nil:
				t.Fatalf("Initialize: %v", err)
			case tt.wantMissing != "" && (err == nil || !strings.HasSuffix(err.Error(), tt.wantMissing)):
				t.Fatalf("Initialize error = %v, want missing %q", err, tt.wantMissing)
			}
			if got := Short(); got != tt.wantShort {
				t.Errorf("Short() = %q, want %q", got, tt.wantShort)
			}
			if Current().Name != "panadapter" {
				t.Errorf("Name = %q", Current().Name)
			}
		})
	}
}
