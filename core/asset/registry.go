package asset

import (
	"fmt"
	"io"
	"strings"
)

// Asset is a materialized asset instance.
type Asset any

// GuidSetter is implemented by instances that want to know their identity.
type GuidSetter interface {
	SetGuid(Guid)
}

// Releaser is implemented by instances holding resources that must be handed
// back when the bank stops caching them.
type Releaser interface {
	Release()
}

// LoadFunc turns a byte stream and optional sidecar metadata into an instance.
type LoadFunc func(r io.Reader, meta Metadata) (Asset, error)

// RegisterOption customizes a kind registration.
type RegisterOption func(*registration)

// ModuleDependent marks a kind whose instances reference types defined by the
// hot-reloadable code module. Entries of such kinds are unloaded before the
// module is swapped.
func ModuleDependent() RegisterOption {
	return func(r *registration) {
		r.moduleDependent = true
	}
}

type registration struct {
	kind            Kind
	extensions      []string
	load            LoadFunc
	moduleDependent bool
}

// Registry maps asset kinds to the file extensions they claim and the function
// that loads them. It is populated once at startup and read-only afterwards.
type Registry struct {
	table [kindCount]*registration
	order []Kind
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register claims extensions for kind. A kind can only be registered once.
func (r *Registry) Register(kind Kind, extensions []string, load LoadFunc, opts ...RegisterOption) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if load == nil {
		return fmt.Errorf("asset: nil load function for %s", kind)
	}
	if r.table[kind] != nil {
		return fmt.Errorf("%w: %s", ErrKindRegistered, kind)
	}

	reg := &registration{kind: kind, load: load}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		reg.extensions = append(reg.extensions, ext)
	}
	for _, opt := range opts {
		opt(reg)
	}

	r.table[kind] = reg
	r.order = append(r.order, kind)
	return nil
}

// Resolve returns the kind claiming ext. Matching is case-insensitive and the
// first registration (in registration order) wins.
func (r *Registry) Resolve(ext string) (Kind, bool) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return KindUnknown, false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, kind := range r.order {
		for _, claimed := range r.table[kind].extensions {
			if claimed == ext {
				return kind, true
			}
		}
	}
	return KindUnknown, false
}

// ResolvePath resolves the kind of a file path by its extension.
func (r *Registry) ResolvePath(p string) (Kind, bool) {
	return r.Resolve(Ext(p))
}

// Load invokes the load function of kind. Failures are wrapped with ErrLoad.
func (r *Registry) Load(kind Kind, stream io.Reader, meta Metadata) (Asset, error) {
	if !kind.Valid() || r.table[kind] == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	instance, err := r.table[kind].load(stream, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, kind, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s: loader returned no instance", ErrLoad, kind)
	}
	return instance, nil
}

// Registered reports whether kind has a registration.
func (r *Registry) Registered(kind Kind) bool {
	return kind.Valid() && r.table[kind] != nil
}

// Kinds lists registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.order...)
}

// Extensions returns the extensions claimed by kind.
func (r *Registry) Extensions(kind Kind) []string {
	if !r.Registered(kind) {
		return nil
	}
	return append([]string(nil), r.table[kind].extensions...)
}

// IsModuleDependent reports whether kind was registered with ModuleDependent.
func (r *Registry) IsModuleDependent(kind Kind) bool {
	return r.Registered(kind) && r.table[kind].moduleDependent
}

// ModuleDependentKinds lists every kind registered with ModuleDependent.
func (r *Registry) ModuleDependentKinds() []Kind {
	var kinds []Kind
	for _, kind := range r.order {
		if r.table[kind].moduleDependent {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
