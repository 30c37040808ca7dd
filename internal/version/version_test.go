package version

import "testing"

func TestString(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "1.2.3"
	Commit = "abc1234"
	BuildTime = "2026-01-15T10:00:00Z"

	if got, want := String(), "1.2.3 (abc1234) built 2026-01-15T10:00:00Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestUserAgent(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "0.4.0"
	if got, want := UserAgent(), "podsync/0.4.0"; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}

func TestDefaultValues(t *testing.T) {
	// ldflags may override these in release builds.
	if Version == "" || Commit == "" || BuildTime == "" {
		t.Errorf("defaults = %q/%q/%q, want non-empty", Version, Commit, BuildTime)
	}
}
