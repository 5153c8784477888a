package module

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

const initializeExport = "_initialize"

// Module is one loaded version of the code module.
type Module struct {
	name    string
	version uint64
	runtime wazero.Runtime
	inst    api.Module
	exports map[string]struct{}
	logger  *zap.Logger

	// mu serializes calls; a wazero instance is not safe for concurrent use.
	mu      sync.Mutex
	refs    atomic.Int64
	retired atomic.Bool
	closed  atomic.Bool
	once    sync.Once
}

// Name returns the name the module was loaded under.
func (m *Module) Name() string { return m.name }

// Version increases with every load on the same host.
func (m *Module) Version() uint64 { return m.version }

// HasExport reports whether the module exports the named function.
func (m *Module) HasExport(name string) bool {
	_, ok := m.exports[name]
	return ok
}

// Exports lists the exported function names in sorted order.
func (m *Module) Exports() []string {
	out := make([]string, 0, len(m.exports))
	for name := range m.exports {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Acquire takes a reference that keeps the module open after it is unloaded.
// It fails once the module is closed.
func (m *Module) Acquire() bool {
	if m.closed.Load() {
		return false
	}
	m.refs.Add(1)
	if m.closed.Load() {
		m.refs.Add(-1)
		return false
	}
	return true
}

// Release drops a reference taken by Acquire.
func (m *Module) Release() {
	if m.refs.Add(-1) <= 0 && m.retired.Load() {
		m.close()
	}
}

// Refs returns the number of outstanding references.
func (m *Module) Refs() int64 {
	return m.refs.Load()
}

// Closed reports whether the runtime has been torn down.
func (m *Module) Closed() bool {
	return m.closed.Load()
}

// Call invokes an exported function.
func (m *Module) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return nil, ErrClosed
	}
	fn := m.inst.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoExport, name)
	}
	res, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", m.name, name, err)
	}
	return res, nil
}

// retire marks the module as unloaded and closes it when unreferenced.
func (m *Module) retire() bool {
	m.retired.Store(true)
	if m.refs.Load() <= 0 {
		m.close()
		return true
	}
	return false
}

func (m *Module) close() {
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.closed.Store(true)
		if err := m.runtime.Close(context.Background()); err != nil {
			m.logger.Warn("Failed to close module runtime",
				zap.String("module", m.name),
				zap.Uint64("version", m.version),
				zap.Error(err))
			return
		}
		m.logger.Debug("Module runtime closed",
			zap.String("module", m.name),
			zap.Uint64("version", m.version))
	})
}

// Host owns the current code module.
type Host struct {
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer

	mu      sync.Mutex
	current *Module
	version uint64
}

// Option customizes a Host.
type Option func(*Host)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithOutput routes the module's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(h *Host) {
		if stdout != nil {
			h.stdout = stdout
		}
		if stderr != nil {
			h.stderr = stderr
		}
	}
}

// NewHost creates an empty host.
func NewHost(opts ...Option) *Host {
	h := &Host{
		logger: zap.NewNop(),
		stdout: io.Discard,
		stderr: io.Discard,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Current returns the loaded module, or nil.
func (h *Host) Current() *Module {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Load instantiates wasm in a fresh runtime and makes it current. The previous
// module is unloaded only after the new one instantiated; on error it stays
// current.
func (h *Host) Load(ctx context.Context, name string, wasm []byte) (*Module, error) {
	m, err := h.Prepare(ctx, name, wasm)
	if err != nil {
		return nil, err
	}
	h.Activate(m)
	return m, nil
}

// Prepare instantiates wasm in a fresh runtime without making it current.
func (h *Host) Prepare(ctx context.Context, name string, wasm []byte) (*Module, error) {
	rt := wazero.NewRuntime(ctx)
	m, err := h.instantiate(ctx, rt, name, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return m, nil
}

// Activate makes a prepared module current and retires the previous one.
func (h *Host) Activate(m *Module) {
	h.mu.Lock()
	h.version++
	m.version = h.version
	prev := h.current
	h.current = m
	h.mu.Unlock()

	if prev != nil {
		h.retire(prev)
	}

	h.logger.Info("Code module loaded",
		zap.String("module", m.name),
		zap.Uint64("version", m.version),
		zap.Int("exports", len(m.exports)))
}

// Discard closes a prepared module that was never activated.
func (h *Host) Discard(m *Module) {
	if m != nil {
		m.retire()
	}
}

func (h *Host) instantiate(ctx context.Context, rt wazero.Runtime, name string, wasm []byte) (*Module, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile module %s: %w", name, err)
	}

	defs := compiled.ExportedFunctions()
	exports := make(map[string]struct{}, len(defs))
	for export := range defs {
		exports[export] = struct{}{}
	}

	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStdout(h.stdout).
		WithStderr(h.stderr).
		WithStartFunctions()
	if _, ok := exports[initializeExport]; ok {
		cfg = cfg.WithStartFunctions(initializeExport)
	}

	inst, err := rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate module %s: %w", name, err)
	}

	return &Module{
		name:    name,
		runtime: rt,
		inst:    inst,
		exports: exports,
		logger:  h.logger,
	}, nil
}

// Unload retires the current module. It returns ErrModuleInUse when the module
// is still referenced; the runtime then closes on the last Release.
func (h *Host) Unload(ctx context.Context) error {
	h.mu.Lock()
	m := h.current
	h.current = nil
	h.mu.Unlock()

	if m == nil {
		return nil
	}
	if !h.retire(m) {
		return fmt.Errorf("%w: %s v%d has %d references", ErrModuleInUse, m.name, m.version, m.Refs())
	}
	return nil
}

func (h *Host) retire(m *Module) bool {
	closed := m.retire()
	if !closed {
		h.logger.Warn("Retired module still referenced, closing deferred",
			zap.String("module", m.name),
			zap.Uint64("version", m.version),
			zap.Int64("refs", m.Refs()))
	}
	return closed
}

// Close unloads the current module.
func (h *Host) Close(ctx context.Context) error {
	return h.Unload(ctx)
}
