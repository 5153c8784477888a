// Package editor exposes the running project to editor tooling over HTTP.
//
// The handlers never touch the bank directly. Every request is marshalled onto
// the project's main loop through Loop.Do, so the bank keeps a single owner
// while the API is served from Fiber's goroutines.
//
// # HTTP
//
//	GET  /status                 bank, watcher and build state
//	GET  /assets?kind=&prefix=   tracked entries, optionally filtered
//	GET  /assets/:guid           one entry; ?load=true materializes it
//	POST /reload?full=true       run a reload now
//	POST /watch/start            start watching the asset and source trees
//	POST /watch/stop             stop watching
package editor
