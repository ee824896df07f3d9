// Package target resolves a target runner for a build triple: the
// wrapper command (e.g. qemu-arm, wine) a cross-compiled test binary
// must be launched through. Resolution scans, in order, the
// CARGO_TARGET_<TRIPLE>_RUNNER environment variable, then the chain of
// .cargo/config.toml files from the working directory upward, then
// $CARGO_HOME; within a config file an exact-triple match always beats
// a cfg(...) expression match.
package target
