package asset

// Entry is the bank's record binding an identity to a kind, a logical name and a
// lazily loaded instance. Entries are created by Bank.Add and owned by that bank.
type Entry struct {
	guid     Guid
	name     string
	kind     Kind
	instance Asset
	removed  bool

	// UserData is free for callers such as processors.
	UserData any
}

// Guid returns the identity of the entry.
func (e *Entry) Guid() Guid { return e.guid }

// Name returns the logical name the entry was registered with.
func (e *Entry) Name() string { return e.name }

// Kind returns the asset kind.
func (e *Entry) Kind() Kind { return e.kind }

// IsLoaded reports whether an instance is currently cached.
func (e *Entry) IsLoaded() bool { return e.instance != nil }

// Removed reports whether the entry was removed from its bank. Removal is final.
func (e *Entry) Removed() bool { return e.removed }

// Instance returns the cached instance without loading.
func (e *Entry) Instance() Asset { return e.instance }

func (e *Entry) evict() {
	if e.instance == nil {
		return
	}
	if r, ok := e.instance.(Releaser); ok {
		r.Release()
	}
	e.instance = nil
}
