package assets

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"asset-bank/core/asset"
	"asset-bank/core/module"
)

var (
	// ErrNoModule is returned when a prefab loads while no code module is
	// current.
	ErrNoModule = errors.New("no code module loaded")
	// ErrUnknownType is returned when the code module does not export the
	// prefab's type.
	ErrUnknownType = errors.New("type not exported by code module")
)

// Prefab is an instance template of a type defined by the code module. It
// keeps that module open until released.
type Prefab struct {
	base
	Type   string
	Fields map[string]any

	module *module.Module
	once   sync.Once
}

// Module returns the module the prefab was loaded against.
func (p *Prefab) Module() *module.Module { return p.module }

// Release implements asset.Releaser.
func (p *Prefab) Release() {
	p.once.Do(p.module.Release)
}

type prefabDoc struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// PrefabLoader returns the loader binding prefabs to the current module of
// host.
func PrefabLoader(host *module.Host) asset.LoadFunc {
	return func(r io.Reader, _ asset.Metadata) (asset.Asset, error) {
		var doc prefabDoc
		if err := decodeLenient(r, &doc); err != nil {
			return nil, fmt.Errorf("load prefab: %w", err)
		}
		if doc.Type == "" {
			return nil, fmt.Errorf("load prefab: missing type")
		}

		m := host.Current()
		if m == nil || !m.Acquire() {
			return nil, ErrNoModule
		}
		if !m.HasExport(doc.Type) {
			m.Release()
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, doc.Type)
		}
		return &Prefab{Type: doc.Type, Fields: doc.Fields, module: m}, nil
	}
}
