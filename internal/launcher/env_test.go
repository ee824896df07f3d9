package launcher

import (
	"strings"
	"testing"

	"github.com/jpequegn/paratest/internal/testid"
)

func TestBuildEnvSentinelsAndPackageVars(t *testing.T) {
	ti := testid.TestInstance{
		BinaryID: "mycrate::tests",
		TestName: "it_works",
		Package: testid.PackageMetadata{
			Name:        "mycrate",
			Version:     "1.2.3",
			Authors:     []string{"a", "b"},
			ManifestDir: "/repo/mycrate",
			BinaryPaths: map[string]string{"helper": "/repo/target/debug/helper"},
		},
	}
	env := BuildEnv([]string{"HOME=/home/u"}, ti, map[string]string{"DB_URL": "sqlite::memory:"})

	want := []string{
		"NEXTEST=1",
		"PARATEST=1",
		"PARATEST_EXECUTION_MODE=process-per-test",
		"PARATEST_PKG_NAME=mycrate",
		"PARATEST_PKG_VERSION=1.2.3",
		"PARATEST_PKG_AUTHORS=a:b",
		"PARATEST_PKG_MANIFEST_DIR=/repo/mycrate",
		"PARATEST_BIN_EXE_helper=/repo/target/debug/helper",
		"DB_URL=sqlite::memory:",
	}
	for _, w := range want {
		if !contains(env, w) {
			t.Errorf("env missing %q; got %v", w, env)
		}
	}
}

func TestBuildEnvMirrorsSIPSanitizedVars(t *testing.T) {
	env := BuildEnv([]string{"LD_LIBRARY_PATH=/usr/local/lib", "DYLD_INSERT_LIBRARIES=/x.dylib", "HOME=/home/u"}, testid.TestInstance{}, nil)
	if !contains(env, "PARATEST_ORIGINAL_LD_LIBRARY_PATH=/usr/local/lib") {
		t.Errorf("expected mirrored LD_LIBRARY_PATH, got %v", env)
	}
	if !contains(env, "PARATEST_ORIGINAL_DYLD_INSERT_LIBRARIES=/x.dylib") {
		t.Errorf("expected mirrored DYLD_INSERT_LIBRARIES, got %v", env)
	}
	if contains(env, "PARATEST_ORIGINAL_HOME=/home/u") {
		t.Errorf("HOME should not be mirrored, got %v", env)
	}
}

func contains(env []string, want string) bool {
	for _, e := range env {
		if e == want {
			return true
		}
	}
	return false
}

func TestDynamicLibraryPathVarKnownPlatform(t *testing.T) {
	v := dynamicLibraryPathVar()
	if !strings.Contains(v, "LIBRARY_PATH") && v != "PATH" {
		t.Errorf("unexpected dynamic library path var: %q", v)
	}
}
