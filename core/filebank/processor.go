package filebank

import "asset-bank/core/asset"

// Processor regenerates derived content when a source asset changes, for
// example baking a texture atlas. It runs on the goroutine that drives syncing.
type Processor interface {
	Changed(b *Bank, guid asset.Guid, name, path string)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(b *Bank, guid asset.Guid, name, path string)

// Changed calls f.
func (f ProcessorFunc) Changed(b *Bank, guid asset.Guid, name, path string) {
	f(b, guid, name, path)
}

// RegisterProcessor installs the processor for kind, replacing any previous one.
func (b *Bank) RegisterProcessor(kind asset.Kind, p Processor) {
	if p == nil {
		delete(b.processors, kind)
		return
	}
	b.processors[kind] = p
}

func (b *Bank) process(kind asset.Kind, guid asset.Guid, name, rel string) {
	p, ok := b.processors[kind]
	if !ok {
		return
	}
	p.Changed(b, guid, name, b.abs(rel))
}
