package version

import (
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version has no default")
	}
	if !strings.HasSuffix(Version, "-dev") {
		t.Errorf("development build version %q lacks the -dev suffix", Version)
	}
	// GitCommit and BuildDate stay empty until ldflags inject them.
	if GitCommit != "" || BuildDate != "" {
		t.Errorf("unexpected baked-in build metadata: commit=%q date=%q", GitCommit, BuildDate)
	}
}
