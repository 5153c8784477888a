package asset

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// EntryLoader produces the instance of an entry on a cache miss.
type EntryLoader func(e *Entry) (Asset, error)

type entryKey struct {
	kind Kind
	name string
}

// Bank stores asset entries keyed by identity and by (kind, name).
//
// A Bank is not safe for concurrent use; all calls must come from the goroutine
// that owns it.
type Bank struct {
	registry *Registry
	load     EntryLoader
	logger   *zap.Logger

	byGuid map[Guid]*Entry
	byName map[entryKey]*Entry
}

// BankOption customizes a Bank.
type BankOption func(*Bank)

// WithLogger sets the logger used for load failures and collisions.
func WithLogger(l *zap.Logger) BankOption {
	return func(b *Bank) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBank creates an empty bank. load is invoked on every cache miss.
func NewBank(registry *Registry, load EntryLoader, opts ...BankOption) *Bank {
	b := &Bank{
		registry: registry,
		load:     load,
		logger:   zap.NewNop(),
		byGuid:   make(map[Guid]*Entry),
		byName:   make(map[entryKey]*Entry),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry returns the registry the bank was built with.
func (b *Bank) Registry() *Registry {
	return b.registry
}

// Add registers a new entry. Identity and (kind, name) must both be unused;
// callers replacing an asset remove the old entry first.
func (b *Bank) Add(kind Kind, guid Guid, name string) (*Entry, error) {
	if guid.IsZero() {
		return nil, fmt.Errorf("%w: nil identity", ErrInvalidGuid)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if prior, ok := b.byGuid[guid]; ok {
		b.logger.Error("Identity collision",
			zap.Stringer("guid", guid),
			zap.String("existing", prior.name),
			zap.String("name", name))
		return nil, fmt.Errorf("%w: %s", ErrGuidCollision, guid)
	}
	key := entryKey{kind: kind, name: nameKey(name)}
	if _, ok := b.byName[key]; ok {
		b.logger.Error("Name collision",
			zap.Stringer("kind", kind),
			zap.String("name", name))
		return nil, fmt.Errorf("%w: %s %q", ErrNameCollision, kind, name)
	}

	e := &Entry{guid: guid, name: NormalizePath(name), kind: kind}
	b.byGuid[guid] = e
	b.byName[key] = e
	return e, nil
}

// Remove deletes the entry with the given identity. It is a no-op if absent.
func (b *Bank) Remove(guid Guid) {
	e, ok := b.byGuid[guid]
	if !ok {
		return
	}
	b.RemoveEntry(e)
}

// RemoveEntry deletes e from both indexes. It is a no-op if e does not belong to
// this bank.
func (b *Bank) RemoveEntry(e *Entry) {
	if e == nil || b.byGuid[e.guid] != e {
		return
	}
	delete(b.byGuid, e.guid)
	delete(b.byName, entryKey{kind: e.kind, name: nameKey(e.name)})
	e.evict()
	e.removed = true
}

// Entry returns the entry with the given identity, or nil.
func (b *Bank) Entry(guid Guid) *Entry {
	return b.byGuid[guid]
}

// EntryByName returns the entry registered under (kind, name), or nil.
func (b *Bank) EntryByName(kind Kind, name string) *Entry {
	return b.byName[entryKey{kind: kind, name: nameKey(name)}]
}

// Has reports whether an entry with the given identity exists.
func (b *Bank) Has(guid Guid) bool {
	_, ok := b.byGuid[guid]
	return ok
}

// HasName reports whether an entry exists under (kind, name).
func (b *Bank) HasName(kind Kind, name string) bool {
	return b.EntryByName(kind, name) != nil
}

// Get returns the instance of the entry with the given identity, loading it on a
// cache miss. It returns nil if the entry is missing or loading fails.
func (b *Bank) Get(guid Guid) Asset {
	instance, err := b.Load(guid)
	if err != nil {
		b.logger.Warn("Asset load failed", zap.Stringer("guid", guid), zap.Error(err))
		return nil
	}
	return instance
}

// GetByName is Get keyed by (kind, name).
func (b *Bank) GetByName(kind Kind, name string) Asset {
	instance, err := b.LoadByName(kind, name)
	if err != nil {
		b.logger.Warn("Asset load failed",
			zap.Stringer("kind", kind),
			zap.String("name", name),
			zap.Error(err))
		return nil
	}
	return instance
}

// Load is Get with the failure reported to the caller.
func (b *Bank) Load(guid Guid) (Asset, error) {
	e, ok := b.byGuid[guid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, guid)
	}
	return b.materialize(e)
}

// LoadByName is Load keyed by (kind, name).
func (b *Bank) LoadByName(kind Kind, name string) (Asset, error) {
	e := b.EntryByName(kind, name)
	if e == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	return b.materialize(e)
}

func (b *Bank) materialize(e *Entry) (Asset, error) {
	if e.instance != nil {
		return e.instance, nil
	}
	if b.load == nil {
		return nil, fmt.Errorf("%w: bank has no loader", ErrNotFound)
	}

	instance, err := b.load(e)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, e.guid)
	}
	// The load callback may have removed or replaced the entry.
	if b.byGuid[e.guid] != e {
		if r, ok := instance.(Releaser); ok {
			r.Release()
		}
		return nil, fmt.Errorf("%w: %s removed during load", ErrNotFound, e.guid)
	}

	if s, ok := instance.(GuidSetter); ok {
		s.SetGuid(e.guid)
	}
	e.instance = instance
	return instance, nil
}

// Each yields the instances of every entry of kind whose name starts with prefix
// (case-insensitive), ordered by name. Entries whose load fails are skipped. The
// sequence is restartable; each iteration re-reads the bank.
func (b *Bank) Each(kind Kind, prefix string) iter.Seq[Asset] {
	return func(yield func(Asset) bool) {
		for _, e := range b.entriesOf(kind, prefix) {
			if b.byGuid[e.guid] != e {
				continue
			}
			instance, err := b.materialize(e)
			if err != nil {
				b.logger.Debug("Skipping asset", zap.Stringer("guid", e.guid), zap.Error(err))
				continue
			}
			if !yield(instance) {
				return
			}
		}
	}
}

func (b *Bank) entriesOf(kind Kind, prefix string) []*Entry {
	prefix = PrefixKey(prefix)
	var out []*Entry
	for key, e := range b.byName {
		if key.kind != kind || !strings.HasPrefix(key.name, prefix) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].name) < strings.ToLower(out[j].name)
	})
	return out
}

// Entries returns a snapshot of all entries ordered by kind then name.
func (b *Bank) Entries() []*Entry {
	out := make([]*Entry, 0, len(b.byGuid))
	for _, e := range b.byGuid {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].kind != out[j].kind {
			return out[i].kind < out[j].kind
		}
		return strings.ToLower(out[i].name) < strings.ToLower(out[j].name)
	})
	return out
}

// Len returns the number of entries.
func (b *Bank) Len() int {
	return len(b.byGuid)
}

// IsLoaded reports whether the entry with the given identity has a cached instance.
func (b *Bank) IsLoaded(guid Guid) bool {
	e, ok := b.byGuid[guid]
	return ok && e.IsLoaded()
}

// Unload drops the cached instance of an entry. Identity, name and kind stay.
func (b *Bank) Unload(guid Guid) {
	if e, ok := b.byGuid[guid]; ok {
		e.evict()
	}
}

// UnloadByName is Unload keyed by (kind, name).
func (b *Bank) UnloadByName(kind Kind, name string) {
	if e := b.EntryByName(kind, name); e != nil {
		e.evict()
	}
}

// UnloadKinds drops the cached instances of every entry of the given kinds and
// returns how many instances were dropped.
func (b *Bank) UnloadKinds(kinds ...Kind) int {
	if len(kinds) == 0 {
		return 0
	}
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}

	dropped := 0
	for _, e := range b.byGuid {
		if _, ok := set[e.kind]; !ok || e.instance == nil {
			continue
		}
		e.evict()
		dropped++
	}
	return dropped
}

// Clear removes every entry.
func (b *Bank) Clear() {
	for _, e := range b.byGuid {
		e.evict()
		e.removed = true
	}
	b.byGuid = make(map[Guid]*Entry)
	b.byName = make(map[entryKey]*Entry)
}
