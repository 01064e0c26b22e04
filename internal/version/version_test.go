package version

import (
	"runtime/debug"
	"testing"
)

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc1234"},
			{Key: "vcs.time", Value: "2025-01-27T10:30:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	info := Info{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"}
	fillFromBuildInfo(&info, bi)
	if info.Version != "v1.2.3" || info.GitCommit != "abc1234" || info.BuildDate != "2025-01-27T10:30:00Z" || !info.Modified {
		t.Errorf("Unexpected info %+v", info)
	}

	pinned := Info{Version: "2.0.0", GitCommit: "fedcba9", BuildDate: "yesterday"}
	fillFromBuildInfo(&pinned, bi)
	if pinned.Version != "2.0.0" || pinned.GitCommit != "fedcba9" || pinned.BuildDate != "yesterday" {
		t.Errorf("Expected ldflags values to win, got %+v", pinned)
	}

	devel := Info{Version: "dev"}
	fillFromBuildInfo(&devel, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if devel.Version != "dev" {
		t.Errorf("Expected dev for devel builds, got %s", devel.Version)
	}
}
