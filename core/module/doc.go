// Package module hosts the hot-reloadable code module.
//
// Every loaded module lives in its own wazero runtime, so unloading a module
// tears down everything it allocated. Callers that hold on to a module across
// a reload Acquire it and Release it when done; an unloaded module is retired
// and its runtime is closed once the last reference is released.
//
// # Usage
//
//	host := module.NewHost(module.WithLogger(log))
//	m, err := host.Load(ctx, "game", wasm)
//	if err != nil {
//		return err
//	}
//	if m.Acquire() {
//		defer m.Release()
//		_, err = m.Call(ctx, "tick")
//	}
package module
