// Package watch wraps fsnotify with recursive directory watching.
//
// fsnotify only watches the directories it is told about. Tree adds every
// directory below its root when started, and adds directories created later as
// their Create events arrive. Files found inside a newly created directory are
// reported as created, since they may have been written before the watch was in
// place.
//
// Handlers run on the watcher goroutine and must not block.
package watch
