// Package filebank keeps an asset.Bank synchronized with a directory tree.
//
// Every asset file gets a sibling sidecar, <file>.meta, holding its identity:
//
//	{"guid": "0b7f3c1e-2d7a-4c1b-9a53-6f0e8c2b4d11"}
//
// The sidecar is the durable source of truth for identity. As long as it exists
// and parses, rescanning the same file reproduces the same identity. A missing or
// corrupt sidecar is replaced by a freshly minted one.
//
// # Change Tracking
//
// File system notifications are turned into marks by the watcher goroutine and
// queued on a bounded channel. They are applied only when the owner calls
// SyncMarkedFiles, which processes the marks that were queued at the moment of
// the call and leaves later ones for the next call. If the queue overflows the
// next drain performs a full resync instead.
//
// Apart from MarkFile, OnRenamed, IsWaitingForSync, Root, IsAssetPath and the
// watching toggles, a Bank must only be used from the goroutine that owns it.
//
// # Renames
//
// A rename is handled as a deletion of the old path followed by the creation of
// the new one, so the renamed file receives a new identity unless its sidecar
// was moved along with it.
package filebank
