package module

import "errors"

var (
	// ErrModuleInUse is returned by Unload when the retired module still has
	// references. Its runtime closes when the last one is released.
	ErrModuleInUse = errors.New("module: still referenced")
	// ErrNoExport is returned by Call for a function the module does not export.
	ErrNoExport = errors.New("module: function not exported")
	// ErrClosed is returned when calling into a closed module.
	ErrClosed = errors.New("module: closed")
)
