package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func saveAndRestore() func() {
	v, c, b, bt := Version, GitCommit, GitBranch, BuildTime
	return func() {
		Version, GitCommit, GitBranch, BuildTime = v, c, b, bt
	}
}

func TestGetVersionInfo_LinkerValues(t *testing.T) {
	defer saveAndRestore()()
	Version = "v1.2.0"
	GitCommit = "abc1234"
	GitBranch = "release"
	BuildTime = "2026-03-01T10:00:00Z"

	info := GetVersionInfo()
	if info.Version != "v1.2.0" || info.GitCommit != "abc1234" || info.GitBranch != "release" {
		t.Errorf("unexpected info %+v", info)
	}
	if want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC); !info.BuildTime.Equal(want) {
		t.Errorf("BuildTime = %v, want %v", info.BuildTime, want)
	}
}

func TestGetVersionInfo_BadBuildTime(t *testing.T) {
	defer saveAndRestore()()
	BuildTime = "yesterday"
	Version = "dev"

	info := GetVersionInfo()
	if info.Version == "" {
		t.Error("version should never be empty")
	}
}

func TestApplyBuildInfo(t *testing.T) {
	info := &Info{Version: "dev"}
	applyBuildInfo(info, &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Main:      debug.Module{Path: "github.com/kbukum/tablemut", Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})

	if info.Version != "v0.3.0" || info.Module != "github.com/kbukum/tablemut" {
		t.Errorf("unexpected module info %+v", info)
	}
	if info.GitCommit != "0123456" || !info.Dirty {
		t.Errorf("unexpected vcs info %+v", info)
	}
	if info.BuildTime.IsZero() {
		t.Error("expected vcs.time to set BuildTime")
	}
	if info.IsRelease() {
		t.Error("dirty build should not be a release")
	}
}

func TestApplyBuildInfo_DevelKeepsLinkerCommit(t *testing.T) {
	info := &Info{Version: "dev", GitCommit: "feedbee"}
	applyBuildInfo(info, &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789"}},
	})
	if info.Version != "dev" || info.GitCommit != "feedbee" {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestShortAndString(t *testing.T) {
	tests := []struct {
		name  string
		info  Info
		short string
		parts []string
	}{
		{"dev", Info{Version: "dev"}, "dev", []string{"tablemut dev"}},
		{"commit", Info{Version: "v1.0.0", GitCommit: "abc1234"}, "v1.0.0-abc1234", nil},
		{"dirty", Info{Version: "v1.0.0", GitCommit: "abc1234", Dirty: true}, "v1.0.0-abc1234-dirty", nil},
		{
			"branch and go", Info{Version: "v1.0.0", GitBranch: "feature/x", GoVersion: "go1.26.0"}, "v1.0.0",
			[]string{"branch feature/x", "go1.26.0"},
		},
		{"main branch hidden", Info{Version: "v1.0.0", GitBranch: "main"}, "v1.0.0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.short {
				t.Errorf("Short() = %q, want %q", got, tt.short)
			}
			s := tt.info.String()
			for _, p := range tt.parts {
				if !strings.Contains(s, p) {
					t.Errorf("String() = %q, missing %q", s, p)
				}
			}
			if strings.Contains(s, "branch main") {
				t.Errorf("main branch should be omitted: %q", s)
			}
		})
	}
}

func TestIsRelease(t *testing.T) {
	if (&Info{Version: "dev"}).IsRelease() {
		t.Error("dev is not a release")
	}
	if !(&Info{Version: "v1.0.0"}).IsRelease() {
		t.Error("clean tag should be a release")
	}
}
