package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// requiredVersion reads the top-level nextest-version key from the
// config file at path, returning "" when the file or the key is absent
// or unreadable (a malformed config surfaces later, through the profile
// loader's own error path).
func requiredVersion(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var root struct {
		NextestVersion string `toml:"nextest-version"`
	}
	if err := toml.Unmarshal(data, &root); err != nil {
		return ""
	}
	return root.NextestVersion
}

// versionAtLeast reports whether current >= required, comparing dotted
// numeric components left to right; missing components count as zero
// and non-numeric components as equal.
func versionAtLeast(current, required string) bool {
	cur := strings.Split(strings.TrimSpace(current), ".")
	req := strings.Split(strings.TrimSpace(required), ".")
	for i := 0; i < len(cur) || i < len(req); i++ {
		var c, r int
		if i < len(cur) {
			c, _ = strconv.Atoi(cur[i])
		}
		if i < len(req) {
			r, _ = strconv.Atoi(req[i])
		}
		if c != r {
			return c > r
		}
	}
	return true
}
