package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Op is the kind of change reported by a Tree.
type Op uint8

const (
	Create Op = iota + 1
	Write
	Remove
	Rename
)

func (o Op) String() string {
	switch o {
	case Create:
		return "create"
	case Write:
		return "write"
	case Remove:
		return "remove"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is a single file system change below the watched root.
type Event struct {
	// Path is the absolute path of the changed file.
	Path string
	Op   Op
}

// Handler receives events on the watcher goroutine.
type Handler func(Event)

// ErrRunning is returned by Start when the tree is already being watched.
var ErrRunning = errors.New("watch: already running")

// Tree watches a directory tree.
type Tree struct {
	root    string
	handler Handler
	logger  *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewTree creates a stopped watcher for root.
func NewTree(root string, handler Handler, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tree{root: root, handler: handler, logger: logger}
}

// Root returns the watched directory.
func (t *Tree) Root() string {
	return t.root
}

// Start begins watching. Events that happened before Start are not reported.
func (t *Tree) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.watcher != nil {
		return ErrRunning
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addTree(w, t.root); err != nil {
		_ = w.Close()
		return err
	}

	t.watcher = w
	t.wg.Add(1)
	go t.run(w)

	t.logger.Debug("Watching directory tree", zap.String("root", t.root))
	return nil
}

// Stop ends watching and waits for the event goroutine to exit. Pending
// notifications are discarded.
func (t *Tree) Stop() {
	t.mu.Lock()
	w := t.watcher
	t.watcher = nil
	t.mu.Unlock()

	if w == nil {
		return
	}
	_ = w.Close()
	t.wg.Wait()
}

// Running reports whether the tree is being watched.
func (t *Tree) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watcher != nil
}

func (t *Tree) run(w *fsnotify.Watcher) {
	defer t.wg.Done()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			t.dispatch(w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			t.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

func (t *Tree) dispatch(w *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			if err := addTree(w, ev.Name); err != nil {
				t.logger.Warn("Failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
			_ = filepath.WalkDir(ev.Name, func(p string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() {
					t.handler(Event{Path: p, Op: Create})
				}
				return nil
			})
			return
		}
		t.handler(Event{Path: ev.Name, Op: Create})
	case ev.Has(fsnotify.Write):
		t.handler(Event{Path: ev.Name, Op: Write})
	case ev.Has(fsnotify.Remove):
		t.handler(Event{Path: ev.Name, Op: Remove})
	case ev.Has(fsnotify.Rename):
		// fsnotify reports the old name here; the new name arrives as Create.
		t.handler(Event{Path: ev.Name, Op: Rename})
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish while walking.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(p)
	})
}
