package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jpequegn/paratest/internal/testid"
)

// DiscoveredBinary is one compiled test binary found by the fixture
// discovery stand-in: enough to seed a testid.BinaryEntry. The real
// discovery subsystem (reading a build-system manifest, cross-compiled
// target metadata, package authorship) is out of scope; this exists
// purely so `paratest run`/`paratest list` are exercisable end to end
// against a directory of test binaries.
type DiscoveredBinary struct {
	BinaryID   string
	BinaryPath string
	Cwd        string
}

// discoverBinaries walks dir (non-recursively) for executable files and
// returns one DiscoveredBinary per file found, binary_id set to the
// file's base name.
func discoverBinaries(dir string) ([]DiscoveredBinary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cmd: read test binary dir %s: %w", dir, err)
	}

	var out []DiscoveredBinary
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}
		out = append(out, DiscoveredBinary{
			BinaryID:   entry.Name(),
			BinaryPath: filepath.Join(dir, entry.Name()),
			Cwd:        dir,
		})
	}
	return out, nil
}

// buildTestList runs each discovered binary with --list-tests and
// parses one test name per non-empty output line, the simplest
// "listing protocol" a fixture test binary can implement.
func buildTestList(binaries []DiscoveredBinary) (*testid.TestList, error) {
	list := &testid.TestList{}
	for _, b := range binaries {
		out, err := exec.Command(b.BinaryPath, "--list-tests").Output()
		if err != nil {
			return nil, fmt.Errorf("cmd: list tests in %s: %w", b.BinaryPath, err)
		}

		var cases []testid.TestCase
		for _, line := range strings.Split(string(out), "\n") {
			name := strings.TrimSpace(line)
			if name == "" {
				continue
			}
			cases = append(cases, testid.TestCase{Name: name, Match: testid.FilterMatched})
		}
		if len(cases) == 0 {
			continue
		}

		list.Binaries = append(list.Binaries, testid.BinaryEntry{
			BinaryID:   b.BinaryID,
			BinaryPath: b.BinaryPath,
			Cwd:        b.Cwd,
			Platform:   testid.PlatformHost,
			Cases:      cases,
		})
	}
	return list, nil
}
