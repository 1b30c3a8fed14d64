package zegemm

import "testing"

func TestBuildDescription(t *testing.T) {
	// Test binaries carry build info without a module version.
	if desc := BuildDescription(); desc == "" {
		t.Error("BuildDescription returned an empty string")
	}
	if v, _ := Version(); v != "" && v != "(devel)" {
		t.Logf("module version %s", v)
	}
}
