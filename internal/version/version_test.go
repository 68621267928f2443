package version

import "testing"

func TestGetVersionWithoutCommit(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "1.2.3", ""
	if got := GetVersion(); got != "1.2.3" {
		t.Errorf("GetVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestGetVersionWithCommit(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "1.2.3", "abcdef0"
	if got, want := GetVersion(), "1.2.3-abcdef0"; got != want {
		t.Errorf("GetVersion() = %q, want %q", got, want)
	}
}
