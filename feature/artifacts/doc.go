// Package artifacts archives built code modules in object storage.
//
// Every successful build is stored content-addressed under
// modules/<name>/<sha256>.wasm and a small modules/<name>/latest object points
// at the newest digest. A fresh editor can restore the last good module from the
// archive without building, and old versions can be pruned.
//
// # HTTP
//
//	GET  /modules/:name          list archived versions, newest first
//	POST /modules/:name/prune    keep the newest ?keep=N versions (default 5)
package artifacts
