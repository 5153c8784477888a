package filebank

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"asset-bank/core/asset"
	"asset-bank/core/watch"

	"go.uber.org/zap"
)

// SyncStats summarizes one sync pass.
type SyncStats struct {
	// Full is set when the whole tree was rescanned.
	Full bool
	// Added counts newly registered entries.
	Added int
	// Updated counts entries whose cached instance was evicted because their
	// file changed, was seen again or replaced another file of the same name.
	Updated int
	// Removed counts entries that left the bank.
	Removed int
	// Dropped counts marks for paths the bank did not track.
	Dropped int
}

// Tracked describes one file-backed entry.
type Tracked struct {
	Guid asset.Guid
	Kind asset.Kind
	Name string
	// Path is root-relative and normalized.
	Path string
	// Loaded reports whether an instance is cached.
	Loaded bool
}

// Bank is an asset.Bank whose entries mirror the files below a root directory.
type Bank struct {
	*asset.Bank

	root       string
	registry   *asset.Registry
	logger     *zap.Logger
	sourceExts map[string]struct{}
	queueSize  int

	pathToGuid map[string]asset.Guid
	guidToPath map[asset.Guid]string
	// shadowed holds, oldest first, the paths an entry was remapped away from by
	// a (kind, name) conflict.
	shadowed   map[asset.Guid][]string
	processors map[asset.Kind]Processor

	marks    chan Mark
	overflow atomic.Bool
	tree     *watch.Tree
}

// New creates a bank rooted at root. The bank starts empty; call SyncAllFiles
// to populate it.
func New(root string, registry *asset.Registry, opts ...Option) (*Bank, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve asset root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("asset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset root %q is not a directory", abs)
	}

	b := &Bank{
		root:       abs,
		registry:   registry,
		logger:     zap.NewNop(),
		queueSize:  DefaultQueueSize,
		pathToGuid: make(map[string]asset.Guid),
		guidToPath: make(map[asset.Guid]string),
		shadowed:   make(map[asset.Guid][]string),
		processors: make(map[asset.Kind]Processor),
	}
	WithSourceExtensions(DefaultSourceExtensions...)(b)
	for _, opt := range opts {
		opt(b)
	}

	b.Bank = asset.NewBank(registry, b.loadEntry, asset.WithLogger(b.logger))
	b.marks = make(chan Mark, b.queueSize)
	b.tree = watch.NewTree(abs, b.onEvent, b.logger)
	return b, nil
}

// Root returns the absolute asset root.
func (b *Bank) Root() string {
	return b.root
}

// StartWatching makes file system changes produce marks.
func (b *Bank) StartWatching() error {
	if err := b.tree.Start(); err != nil && !errors.Is(err, watch.ErrRunning) {
		return fmt.Errorf("start watching %s: %w", b.root, err)
	}
	return nil
}

// StopWatching stops observing the file system. Changes made while stopped are
// not buffered; a SyncAllFiles is needed to pick them up.
func (b *Bank) StopWatching() {
	b.tree.Stop()
}

// IsWatching reports whether changes are being observed.
func (b *Bank) IsWatching() bool {
	return b.tree.Running()
}

// Close stops watching.
func (b *Bank) Close() error {
	b.StopWatching()
	return nil
}

func (b *Bank) onEvent(ev watch.Event) {
	switch ev.Op {
	case watch.Create:
		b.MarkFile(ev.Path, Created)
	case watch.Write:
		b.MarkFile(ev.Path, Changed)
	case watch.Remove, watch.Rename:
		b.MarkFile(ev.Path, Deleted)
	}
}

// MarkFile queues a change for the next SyncMarkedFiles. Sidecars, code files
// and paths outside the root are filtered out. It is safe to call from any
// goroutine. It reports whether the mark was queued.
func (b *Bank) MarkFile(path string, change ChangeKind) bool {
	rel, ok := b.rel(path)
	if !ok || b.ignored(rel) {
		return false
	}

	select {
	case b.marks <- Mark{Path: rel, Change: change}:
		return true
	default:
		if !b.overflow.Swap(true) {
			b.logger.Warn("Mark queue full, next sync will rescan everything",
				zap.Int("capacity", cap(b.marks)))
		}
		return false
	}
}

// OnRenamed records a rename as a deletion followed by a creation. The new path
// does not inherit the old identity.
func (b *Bank) OnRenamed(oldPath, newPath string) {
	b.MarkFile(oldPath, Deleted)
	b.MarkFile(newPath, Created)
}

// IsWaitingForSync reports whether marks are pending.
func (b *Bank) IsWaitingForSync() bool {
	return len(b.marks) > 0 || b.overflow.Load()
}

// PendingMarks returns the number of queued marks.
func (b *Bank) PendingMarks() int {
	return len(b.marks)
}

// SyncAllFiles discards pending marks, adds every file below the root and
// removes entries whose files are gone.
func (b *Bank) SyncAllFiles() SyncStats {
	stats := SyncStats{Full: true}

	b.discardMarks()

	seen := make(map[string]struct{}, len(b.pathToGuid))
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			b.logger.Warn("Skipping unreadable path", zap.String("path", p), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, ok := b.rel(p)
		if !ok {
			return nil
		}
		if e, outcome := b.addFile(rel); e != nil {
			seen[asset.PathKey(rel)] = struct{}{}
			outcome.count(&stats)
		}
		return nil
	})
	if err != nil {
		b.logger.Warn("Asset walk incomplete", zap.String("root", b.root), zap.Error(err))
	}

	var stale []string
	for key := range b.pathToGuid {
		if _, ok := seen[key]; !ok {
			stale = append(stale, b.guidToPath[b.pathToGuid[key]])
		}
	}
	for _, rel := range stale {
		removeOutcome(b.removeFile(rel)).count(&stats)
	}

	b.logger.Info("Full asset sync finished",
		zap.Int("entries", b.Len()),
		zap.Int("added", stats.Added),
		zap.Int("refreshed", stats.Updated),
		zap.Int("removed", stats.Removed))
	return stats
}

// SyncMarkedFiles applies the marks queued at the time of the call, in arrival
// order. Marks queued while it runs are left for the next call.
func (b *Bank) SyncMarkedFiles() SyncStats {
	if b.overflow.Swap(false) {
		return b.SyncAllFiles()
	}

	var stats SyncStats
	n := len(b.marks)
	for i := 0; i < n; i++ {
		b.apply(<-b.marks, &stats)
	}

	if n > 0 {
		b.logger.Debug("Applied file marks",
			zap.Int("marks", n),
			zap.Int("added", stats.Added),
			zap.Int("updated", stats.Updated),
			zap.Int("removed", stats.Removed),
			zap.Int("dropped", stats.Dropped))
	}
	return stats
}

func (b *Bank) apply(m Mark, stats *SyncStats) {
	switch m.Change {
	case Created:
		_, outcome := b.addFile(m.Path)
		outcome.count(stats)
	case Changed:
		if b.UpdateFile(m.Path) {
			stats.Updated++
		} else {
			stats.Dropped++
		}
	case Deleted:
		if tracked, kept := b.removeFile(m.Path); tracked {
			removeOutcome(tracked, kept).count(stats)
			return
		}
		// A deleted directory takes its tracked files with it.
		if removed, kept := b.removeTree(m.Path); removed+kept > 0 {
			stats.Removed += removed
			stats.Updated += kept
			return
		}
		stats.Dropped++
	}
}

func (b *Bank) discardMarks() {
	for {
		select {
		case <-b.marks:
		default:
			b.overflow.Store(false)
			return
		}
	}
}

// syncOutcome tells what a sync step did with a path.
type syncOutcome int

const (
	outcomeIgnored syncOutcome = iota
	// outcomeAdded registered a new entry.
	outcomeAdded
	// outcomeRefreshed found the (kind, name) already registered, evicted its
	// instance and pointed it at the path.
	outcomeRefreshed
	// outcomeRemoved took the entry out of the bank.
	outcomeRemoved
)

func (o syncOutcome) count(stats *SyncStats) {
	switch o {
	case outcomeAdded:
		stats.Added++
	case outcomeRefreshed:
		stats.Updated++
	case outcomeRemoved:
		stats.Removed++
	}
}

// AddFile registers the file at path, which may be absolute or root-relative.
// It returns nil when the file is not an asset.
//
// If an entry with the same kind and name already exists, its cached instance is
// evicted and the entry is remapped to path. Otherwise the identity is read from
// the sidecar, or minted and persisted when the sidecar is missing or invalid.
// Processors run for files that had no valid sidecar.
func (b *Bank) AddFile(path string) *asset.Entry {
	e, _ := b.addFile(path)
	return e
}

func (b *Bank) addFile(path string) (*asset.Entry, syncOutcome) {
	rel, ok := b.rel(path)
	if !ok || b.ignored(rel) {
		return nil, outcomeIgnored
	}
	kind, ok := b.registry.ResolvePath(rel)
	if !ok {
		b.logger.Debug("Ignoring file with unregistered extension", zap.String("path", rel))
		return nil, outcomeIgnored
	}
	abs := b.abs(rel)
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, outcomeIgnored
	}

	name := asset.LogicalName(rel)
	key := asset.PathKey(rel)

	if existing := b.EntryByName(kind, name); existing != nil {
		guid := existing.Guid()
		b.Unload(guid)
		b.unshadow(guid, key)
		if oldRel, ok := b.guidToPath[guid]; ok && asset.PathKey(oldRel) != key {
			delete(b.pathToGuid, asset.PathKey(oldRel))
			b.shadowed[guid] = append(b.shadowed[guid], oldRel)
			b.logger.Warn("Asset name conflict, newer file replaces mapping",
				zap.String("name", name),
				zap.String("previous", oldRel),
				zap.String("path", rel))
		}
		b.pathToGuid[key] = guid
		b.guidToPath[guid] = rel
		return existing, outcomeRefreshed
	}

	guid, fresh := b.resolveIdentity(abs, rel)

	entry, err := b.Bank.Add(kind, guid, name)
	if err != nil {
		b.logger.Error("Failed to register asset", zap.String("path", rel), zap.Error(err))
		return nil, outcomeIgnored
	}
	b.pathToGuid[key] = guid
	b.guidToPath[guid] = rel

	if fresh {
		b.process(kind, guid, name, rel)
	}
	return entry, outcomeAdded
}

// resolveIdentity returns the identity recorded in the sidecar of abs, minting
// and persisting a new one when needed. fresh reports that no usable sidecar
// existed.
func (b *Bank) resolveIdentity(abs, rel string) (guid asset.Guid, fresh bool) {
	sc, err := ReadSidecar(abs)
	switch {
	case err == nil && !b.Has(sc.Guid):
		return sc.Guid, false
	case err == nil:
		// Typically a file copied together with its sidecar.
		b.logger.Warn("Duplicate identity in sidecar, minting a new one",
			zap.String("path", rel),
			zap.Stringer("guid", sc.Guid))
	case !errors.Is(err, fs.ErrNotExist):
		b.logger.Warn("Unreadable sidecar, minting a new identity",
			zap.String("path", rel),
			zap.Error(err))
	}

	guid = asset.NewGuid()
	extra := sc.Fields.Clone()
	delete(extra, guidField)
	if err := WriteSidecar(abs, guid, extra); err != nil {
		b.logger.Error("Failed to persist identity", zap.String("path", rel), zap.Error(err))
	}
	return guid, true
}

// RemoveFile unregisters the entry backed by path. It reports whether the path
// was tracked.
//
// When the entry had been remapped to path by a (kind, name) conflict and one of
// the files it replaced still exists, the entry is remapped back to the newest
// such file and keeps its identity instead of being removed.
func (b *Bank) RemoveFile(path string) bool {
	tracked, _ := b.removeFile(path)
	return tracked
}

// removeFile reports whether path was tracked and whether its entry was kept
// for a surviving shadowed file.
func (b *Bank) removeFile(path string) (tracked, kept bool) {
	rel, ok := b.rel(path)
	if !ok {
		return false, false
	}
	key := asset.PathKey(rel)
	guid, ok := b.pathToGuid[key]
	if !ok {
		return false, false
	}

	if survivor, ok := b.survivor(guid); ok {
		b.Unload(guid)
		delete(b.pathToGuid, key)
		b.pathToGuid[asset.PathKey(survivor)] = guid
		b.guidToPath[guid] = survivor
		b.logger.Info("Asset file removed, falling back to the file it replaced",
			zap.String("path", rel),
			zap.String("fallback", survivor))
		return true, true
	}

	b.Remove(guid)
	return true, false
}

func removeOutcome(tracked, kept bool) syncOutcome {
	switch {
	case kept:
		return outcomeRefreshed
	case tracked:
		return outcomeRemoved
	default:
		return outcomeIgnored
	}
}

// survivor pops the newest shadowed path of guid that is still a file of the
// same kind and name. Paths that no longer qualify are forgotten.
func (b *Bank) survivor(guid asset.Guid) (string, bool) {
	e := b.Entry(guid)
	if e == nil {
		return "", false
	}
	paths := b.shadowed[guid]
	for len(paths) > 0 {
		rel := paths[len(paths)-1]
		paths = paths[:len(paths)-1]

		kind, ok := b.registry.ResolvePath(rel)
		if !ok || kind != e.Kind() || asset.PathKey(asset.LogicalName(rel)) != asset.PathKey(e.Name()) {
			continue
		}
		if _, taken := b.pathToGuid[asset.PathKey(rel)]; taken {
			continue
		}
		if info, err := os.Stat(b.abs(rel)); err != nil || info.IsDir() {
			continue
		}
		b.setShadowed(guid, paths)
		return rel, true
	}
	b.setShadowed(guid, nil)
	return "", false
}

// unshadow forgets key from the shadowed paths of guid.
func (b *Bank) unshadow(guid asset.Guid, key string) {
	paths := b.shadowed[guid]
	kept := paths[:0]
	for _, p := range paths {
		if asset.PathKey(p) != key {
			kept = append(kept, p)
		}
	}
	b.setShadowed(guid, kept)
}

func (b *Bank) setShadowed(guid asset.Guid, paths []string) {
	if len(paths) == 0 {
		delete(b.shadowed, guid)
		return
	}
	b.shadowed[guid] = paths
}

func (b *Bank) removeTree(dir string) (removedCount, keptCount int) {
	rel, ok := b.rel(dir)
	if !ok {
		return 0, 0
	}
	prefix := asset.PathKey(rel) + "/"

	var paths []string
	for key, guid := range b.pathToGuid {
		if strings.HasPrefix(key, prefix) {
			paths = append(paths, b.guidToPath[guid])
		}
	}
	for _, p := range paths {
		switch tracked, kept := b.removeFile(p); {
		case kept:
			keptCount++
		case tracked:
			removedCount++
		}
	}
	return removedCount, keptCount
}

// UpdateFile evicts the cached instance of the entry backed by path so that the
// next Get reloads it, then runs the kind's processor. It reports whether the
// path was tracked.
func (b *Bank) UpdateFile(path string) bool {
	rel, ok := b.rel(path)
	if !ok {
		return false
	}
	guid, ok := b.pathToGuid[asset.PathKey(rel)]
	if !ok {
		return false
	}
	b.Unload(guid)
	if e := b.Entry(guid); e != nil {
		b.process(e.Kind(), guid, e.Name(), b.guidToPath[guid])
	}
	return true
}

// Remove deletes the entry and its path mapping.
func (b *Bank) Remove(guid asset.Guid) {
	if rel, ok := b.guidToPath[guid]; ok {
		delete(b.pathToGuid, asset.PathKey(rel))
		delete(b.guidToPath, guid)
	}
	delete(b.shadowed, guid)
	b.Bank.Remove(guid)
}

// RemoveEntry deletes e and its path mapping.
func (b *Bank) RemoveEntry(e *asset.Entry) {
	if e == nil || b.Entry(e.Guid()) != e {
		return
	}
	b.Remove(e.Guid())
}

// Clear removes every entry and path mapping.
func (b *Bank) Clear() {
	b.Bank.Clear()
	b.pathToGuid = make(map[string]asset.Guid)
	b.guidToPath = make(map[asset.Guid]string)
	b.shadowed = make(map[asset.Guid][]string)
}

// GetAssetStream opens the file backing guid. It returns asset.ErrNotFound when
// the identity is not file-backed or the file no longer exists.
func (b *Bank) GetAssetStream(guid asset.Guid) (io.ReadCloser, error) {
	rel, ok := b.guidToPath[guid]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no file", asset.ErrNotFound, guid)
	}
	f, err := os.Open(b.abs(rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", asset.ErrNotFound, rel)
		}
		return nil, err
	}
	return f, nil
}

func (b *Bank) loadEntry(e *asset.Entry) (asset.Asset, error) {
	stream, err := b.GetAssetStream(e.Guid())
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var meta asset.Metadata
	if sc, err := ReadSidecar(b.abs(b.guidToPath[e.Guid()])); err == nil {
		meta = sc.Fields
	}
	return b.registry.Load(e.Kind(), stream, meta)
}

// PathOf returns the root-relative path backing guid.
func (b *Bank) PathOf(guid asset.Guid) (string, bool) {
	rel, ok := b.guidToPath[guid]
	return rel, ok
}

// GuidOf returns the identity tracked for path.
func (b *Bank) GuidOf(path string) (asset.Guid, bool) {
	rel, ok := b.rel(path)
	if !ok {
		return asset.NilGuid, false
	}
	guid, ok := b.pathToGuid[asset.PathKey(rel)]
	return guid, ok
}

// Tracked lists every file-backed entry ordered by path.
func (b *Bank) Tracked() []Tracked {
	out := make([]Tracked, 0, len(b.guidToPath))
	for guid, rel := range b.guidToPath {
		e := b.Entry(guid)
		if e == nil {
			continue
		}
		out = append(out, Tracked{Guid: guid, Kind: e.Kind(), Name: e.Name(), Path: rel, Loaded: e.IsLoaded()})
	}
	sort.Slice(out, func(i, j int) bool {
		return asset.PathKey(out[i].Path) < asset.PathKey(out[j].Path)
	})
	return out
}

// IsAssetPath reports whether path would be registered by AddFile, ignoring
// whether the file exists.
func (b *Bank) IsAssetPath(path string) bool {
	rel, ok := b.rel(path)
	if !ok || b.ignored(rel) {
		return false
	}
	_, ok = b.registry.ResolvePath(rel)
	return ok
}

// RewriteSidecar persists the tracked identity of path to its sidecar, keeping
// any extra fields that still parse.
func (b *Bank) RewriteSidecar(path string) error {
	rel, ok := b.rel(path)
	if !ok {
		return fmt.Errorf("%w: %s", asset.ErrNotFound, path)
	}
	guid, ok := b.pathToGuid[asset.PathKey(rel)]
	if !ok {
		return fmt.Errorf("%w: %s is not tracked", asset.ErrNotFound, rel)
	}
	abs := b.abs(rel)
	sc, _ := ReadSidecar(abs)
	extra := sc.Fields.Clone()
	delete(extra, guidField)
	return WriteSidecar(abs, guid, extra)
}

// rel converts an absolute or root-relative path to the normalized root-relative
// form. It fails for paths outside the root.
func (b *Bank) rel(path string) (string, bool) {
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(b.root, path)
		if err != nil {
			return "", false
		}
		path = r
	}
	n := asset.NormalizePath(filepath.ToSlash(filepath.Clean(path)))
	if n == "" || n == "." || n == ".." || strings.HasPrefix(n, "../") {
		return "", false
	}
	return n, true
}

func (b *Bank) abs(rel string) string {
	return filepath.Join(b.root, filepath.FromSlash(rel))
}

func (b *Bank) ignored(rel string) bool {
	ext := asset.Ext(rel)
	if ext == MetaExt {
		return true
	}
	_, ok := b.sourceExts[ext]
	return ok
}
