package target

import "testing"

func TestParseTriple(t *testing.T) {
	tests := []struct {
		triple string
		want   tripleInfo
	}{
		{
			triple: "x86_64-unknown-linux-gnu",
			want:   tripleInfo{arch: "x86_64", vendor: "unknown", os: "linux", env: "gnu", family: "unix", endian: "little", pointerWidth: 64},
		},
		{
			triple: "x86_64-pc-windows-msvc",
			want:   tripleInfo{arch: "x86_64", vendor: "pc", os: "windows", env: "msvc", family: "windows", endian: "little", pointerWidth: 64},
		},
		{
			triple: "aarch64-apple-darwin",
			want:   tripleInfo{arch: "aarch64", vendor: "apple", os: "macos", family: "unix", endian: "little", pointerWidth: 64},
		},
		{
			triple: "armv7-unknown-linux-gnueabihf",
			want:   tripleInfo{arch: "arm", vendor: "unknown", os: "linux", env: "gnu", family: "unix", endian: "little", pointerWidth: 32},
		},
		{
			triple: "i686-unknown-linux-musl",
			want:   tripleInfo{arch: "x86", vendor: "unknown", os: "linux", env: "musl", family: "unix", endian: "little", pointerWidth: 32},
		},
		{
			triple: "aarch64-linux-android",
			want:   tripleInfo{arch: "aarch64", os: "android", family: "unix", endian: "little", pointerWidth: 64},
		},
		{
			triple: "s390x-unknown-linux-gnu",
			want:   tripleInfo{arch: "s390x", vendor: "unknown", os: "linux", env: "gnu", family: "unix", endian: "big", pointerWidth: 64},
		},
		{
			triple: "wasm32-unknown-unknown",
			want:   tripleInfo{arch: "wasm32", vendor: "unknown", os: "unknown", endian: "little", pointerWidth: 32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			got := parseTriple(tt.triple)
			if got != tt.want {
				t.Fatalf("parseTriple(%q) = %+v, want %+v", tt.triple, got, tt.want)
			}
		})
	}
}

func TestCfgExprEval(t *testing.T) {
	linux := parseTriple("x86_64-unknown-linux-gnu")
	windows := parseTriple("x86_64-pc-windows-msvc")
	mac := parseTriple("aarch64-apple-darwin")

	tests := []struct {
		expr string
		info tripleInfo
		want bool
	}{
		{"cfg(unix)", linux, true},
		{"cfg(unix)", windows, false},
		{"cfg(unix)", mac, true},
		{"cfg(windows)", windows, true},
		{"cfg(windows)", linux, false},
		{`cfg(target_os = "linux")`, linux, true},
		{`cfg(target_os = "linux")`, mac, false},
		{`cfg(target_arch = "x86_64")`, linux, true},
		{`cfg(target_arch = "x86_64")`, mac, false},
		{`cfg(target_env = "msvc")`, windows, true},
		{`cfg(target_pointer_width = "64")`, linux, true},
		{`cfg(target_pointer_width = "32")`, linux, false},
		{`cfg(all(unix, target_arch = "x86_64"))`, linux, true},
		{`cfg(all(unix, target_arch = "x86_64"))`, mac, false},
		{`cfg(any(windows, target_os = "macos"))`, mac, true},
		{`cfg(any(windows, target_os = "macos"))`, linux, false},
		{`cfg(not(windows))`, linux, true},
		{`cfg(not(windows))`, windows, false},
		{`cfg(all(not(windows), any(target_os = "linux", target_os = "macos")))`, linux, true},
		// Non-target predicates never match a triple.
		{`cfg(feature = "foo")`, linux, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			expr, err := parseCfg(tt.expr)
			if err != nil {
				t.Fatal(err)
			}
			if got := expr.eval(tt.info); got != tt.want {
				t.Fatalf("eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParseCfgErrors(t *testing.T) {
	for _, expr := range []string{
		"x86_64-unknown-linux-gnu",
		"cfg(",
		"cfg()trailing",
		`cfg(target_os = linux)`,
		`cfg(all(unix)`,
	} {
		if _, err := parseCfg(expr); err == nil {
			t.Errorf("parseCfg(%q) succeeded, want error", expr)
		}
	}
}
