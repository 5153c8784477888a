// Package build wraps the external tool that compiles the code module.
//
// A Compiler runs one build at a time on a worker goroutine. Callers poll
// IsBuilding and read the outcome through Result, IsSuccess and Errors once the
// build has finished. The default command cross-compiles a Go package to a
// WASI reactor module that core/module can load.
//
// # Diagnostics
//
// Output lines are classified as errors either by a configured marker
// substring or, when no marker is set, by the file:line:col prefix the Go
// toolchain prints. Trailing location suffixes such as " [project]" or
// "(12,4)" are stripped for display.
package build
