package target

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Runner is a resolved target runner: the wrapper binary plus any
// leading arguments configured alongside it.
type Runner struct {
	Binary string
	Args   []string
	// Source records where the runner was found (the environment
	// variable name or the config key), for diagnostics.
	Source string
}

// Command composes the actual invocation for one test binary: the
// runner binary, followed by the runner's own arguments, followed by
// the test binary path and its arguments.
func (r *Runner) Command(program string, args []string) (string, []string) {
	out := make([]string, 0, len(r.Args)+1+len(args))
	out = append(out, r.Args...)
	out = append(out, program)
	out = append(out, args...)
	return r.Binary, out
}

// For resolves the runner configured for triple, or nil if none is.
// cwd anchors the .cargo/config.toml search chain (cargo resolves the
// chain from the working directory, not the manifest path); cargoHome
// may be empty, in which case ~/.cargo is assumed. lookupEnv is
// os.LookupEnv in production and a fixed map in tests.
func For(triple, cwd, cargoHome string, lookupEnv func(string) (string, bool)) (*Runner, error) {
	if triple == "" {
		return nil, nil
	}

	// The environment variable always takes precedence over any config
	// file.
	envKey := "CARGO_TARGET_" + strings.ReplaceAll(strings.ToUpper(triple), "-", "_") + "_RUNNER"
	if value, ok := lookupEnv(envKey); ok {
		return parseRunner(envKey, value)
	}

	return findConfig(triple, cwd, cargoHome)
}

// findConfig walks the .cargo config chain from cwd upward, appending
// $CARGO_HOME's config last, and applies matches in farthest-to-closest
// order so the config nearest the working directory wins.
func findConfig(triple, cwd, cargoHome string) (*Runner, error) {
	if cargoHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cargoHome = filepath.Join(home, ".cargo")
		}
	}

	abs, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("target: resolve cwd %s: %w", cwd, err)
	}

	var configs []string
	for dir := abs; ; {
		if path, ok := configFileIn(filepath.Join(dir, ".cargo")); ok {
			configs = append(configs, path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if cargoHome != "" {
		if path, ok := configFileIn(cargoHome); ok {
			duplicate := false
			for _, c := range configs {
				if c == path {
					duplicate = true
					break
				}
			}
			if !duplicate {
				configs = append(configs, path)
			}
		}
	}

	info := parseTriple(triple)
	key := fmt.Sprintf("target.%s.runner", triple)

	var runner *Runner
	for i := len(configs) - 1; i >= 0; i-- {
		found, err := runnerFromConfig(configs[i], triple, info, key)
		if err != nil {
			return nil, err
		}
		if found != nil {
			runner = found
		}
	}
	return runner, nil
}

// configFileIn returns dir's cargo config file, checking for `config`
// before `config.toml`, the same probe order cargo uses.
func configFileIn(dir string) (string, bool) {
	for _, name := range []string{"config", "config.toml"} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

type cargoConfig struct {
	Target map[string]cargoTarget `toml:"target"`
}

type cargoTarget struct {
	Runner *string `toml:"runner"`
}

// runnerFromConfig extracts the runner one config file declares for
// the triple, or nil. An exact-triple table always beats a cfg(...)
// table; among several matching cfg(...) tables the alphabetically
// first key wins (the deterministic order the original's sorted target
// table iteration gives).
func runnerFromConfig(path, triple string, info tripleInfo, key string) (*Runner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("target: read %s: %w", path, err)
	}
	var config cargoConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("target: parse %s: %w", path, err)
	}

	if t, ok := config.Target[triple]; ok && t.Runner != nil {
		return parseRunner(key, *t.Runner)
	}

	var cfgKeys []string
	for k, t := range config.Target {
		if strings.HasPrefix(k, "cfg(") && t.Runner != nil {
			cfgKeys = append(cfgKeys, k)
		}
	}
	sort.Strings(cfgKeys)

	for _, k := range cfgKeys {
		expr, err := parseCfg(k)
		if err != nil {
			// A cfg expression this parser doesn't understand is
			// skipped, never fatal, matching the original.
			continue
		}
		if expr.eval(info) {
			return parseRunner(key, *config.Target[k].Runner)
		}
	}
	return nil, nil
}

// parseRunner splits a configured runner value on whitespace, the same
// (quoting-unaware) split cargo applies.
func parseRunner(source, value string) (*Runner, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil, fmt.Errorf("target: %s: runner binary not specified", source)
	}
	return &Runner{Binary: fields[0], Args: fields[1:], Source: source}, nil
}
