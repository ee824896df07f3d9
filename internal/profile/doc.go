// Package profile resolves the effective runtime policy for each test
// instance from a layered configuration: global defaults, a named
// profile base, and per-test predicate overrides. Resolution is a
// first-match-wins fold over the override list in priority order; the
// core never mutates a resolved Profile once produced.
package profile
