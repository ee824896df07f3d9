package launcher

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/jpequegn/paratest/internal/testid"
)

// dynamicLibraryPathVar returns the platform-specific environment
// variable name the dynamic linker consults for its search path.
func dynamicLibraryPathVar() string {
	switch runtime.GOOS {
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	case "windows":
		return "PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// sanitizedPrefixes are the environment-variable name prefixes macOS's
// System Integrity Protection strips from a child's environment when
// the parent binary is itself SIP-protected (e.g. a tool installed via
// Homebrew under /usr/local into a protected shell). Mirroring these
// under a prefixed name lets a setup script or a re-exec through a
// shell runner recover the original value even if SIP scrubbed the
// unprefixed one along the way.
var sanitizedPrefixes = []string{"LD_", "DYLD_"}

// mirrorPrefix is prepended to a mirrored SIP-sanitized variable name.
const mirrorPrefix = "PARATEST_ORIGINAL_"

// BuildEnv constructs the full child environment for one test instance:
// sentinel vars, package metadata vars, mirrored SIP-sanitized vars, a
// sibling-binary path map, and any setup-script-published vars. The
// dynamic library search path var (dynamicLibraryPathVar) is not set
// here; the child sees whatever value parentEnv carries. parentEnv is the process's own
// environment (os.Environ() in production, a fixed slice in tests);
// published is the accumulated setup-script environment, applied last
// so it can override anything else.
func BuildEnv(parentEnv []string, ti testid.TestInstance, published map[string]string) []string {
	env := append([]string(nil), parentEnv...)

	env = append(env,
		"NEXTEST=1",
		"PARATEST=1",
		"PARATEST_EXECUTION_MODE=process-per-test",
	)

	pkg := ti.Package
	env = append(env,
		"PARATEST_PKG_NAME="+pkg.Name,
		"PARATEST_PKG_VERSION="+pkg.Version,
		"PARATEST_PKG_AUTHORS="+strings.Join(pkg.Authors, ":"),
		"PARATEST_PKG_DESCRIPTION="+pkg.Description,
		"PARATEST_PKG_HOMEPAGE="+pkg.Homepage,
		"PARATEST_PKG_LICENSE="+pkg.License,
		"PARATEST_PKG_LICENSE_FILE="+pkg.LicenseFile,
		"PARATEST_PKG_REPOSITORY="+pkg.Repository,
		"PARATEST_PKG_MANIFEST_DIR="+pkg.ManifestDir,
		"PARATEST_PKG_RUST_MIN_VERSION="+pkg.MinLangVer,
	)

	for _, kv := range parentEnv {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, prefix := range sanitizedPrefixes {
			if strings.HasPrefix(name, prefix) {
				env = append(env, mirrorPrefix+kv)
				break
			}
		}
	}

	for name, path := range pkg.BinaryPaths {
		env = append(env, fmt.Sprintf("PARATEST_BIN_EXE_%s=%s", name, path))
	}

	for k, v := range published {
		env = append(env, k+"="+v)
	}

	return env
}
