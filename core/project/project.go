package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"asset-bank/core/asset"
	"asset-bank/core/build"
	"asset-bank/core/filebank"
	"asset-bank/core/module"
	"asset-bank/core/watch"

	"go.uber.org/zap"
)

// SyncObserver is notified after every sync that changed the bank.
type SyncObserver interface {
	Synced(ctx context.Context, tracked []filebank.Tracked, stats filebank.SyncStats) error
}

// Archiver stores successfully built modules.
type Archiver interface {
	Archive(ctx context.Context, name string, wasm []byte) error
}

// ReloadResult describes what one Reload call did.
type ReloadResult struct {
	// BuildStarted is set when a build was started by this call.
	BuildStarted bool
	// BuildFinished is set when this call consumed a finished build.
	BuildFinished bool
	// BuildFailed is set when the consumed build failed.
	BuildFailed bool
	// Swapped is set when a new module became current.
	Swapped       bool
	Invalidated   int
	ModuleVersion uint64
	Synced        bool
	Stats         filebank.SyncStats
}

// Project owns the bank, the compiler and the module host.
type Project struct {
	cfg      Config
	registry *asset.Registry
	bank     *filebank.Bank
	compiler *build.Compiler
	host     *module.Host
	sources  *watch.Tree
	logger   *zap.Logger

	observers []SyncObserver
	archiver  Archiver
	runner    build.Runner

	needsRebuild atomic.Bool
	buildPending bool
	errors       []string
}

// Option customizes a Project.
type Option func(*Project)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Project) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithHost uses h instead of a fresh module host.
func WithHost(h *module.Host) Option {
	return func(p *Project) {
		p.host = h
	}
}

// WithBuildRunner replaces the process runner of the compiler.
func WithBuildRunner(r build.Runner) Option {
	return func(p *Project) {
		p.runner = r
	}
}

// WithSyncObserver adds an observer notified after syncs.
func WithSyncObserver(o SyncObserver) Option {
	return func(p *Project) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// WithArchiver stores every successfully built module.
func WithArchiver(a Archiver) Option {
	return func(p *Project) {
		p.archiver = a
	}
}

// New creates a project over cfg.Root. Relative directories are resolved
// against the working directory once, here. The bank starts empty.
func New(cfg Config, registry *asset.Registry, opts ...Option) (*Project, error) {
	cfg, err := cfg.absolute()
	if err != nil {
		return nil, err
	}

	p := &Project{
		cfg:      cfg,
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.host == nil {
		p.host = module.NewHost(module.WithLogger(p.logger))
	}

	bank, err := filebank.New(cfg.Root, registry,
		filebank.WithLogger(p.logger),
		filebank.WithQueueSize(cfg.QueueSize),
		filebank.WithSourceExtensions(cfg.SourceExtensions...))
	if err != nil {
		return nil, err
	}
	p.bank = bank

	p.compiler = build.NewCompiler("", cfg.Build(),
		build.WithLogger(p.logger),
		build.WithRunner(p.runner))

	p.sources = watch.NewTree(cfg.SourceDir, p.onSourceEvent, p.logger)
	return p, nil
}

// Bank returns the file-backed bank. It must only be used from the main
// timeline.
func (p *Project) Bank() *filebank.Bank { return p.bank }

// Host returns the module host.
func (p *Project) Host() *module.Host { return p.host }

// Compiler returns the compiler.
func (p *Project) Compiler() *build.Compiler { return p.compiler }

// Registry returns the loader registry.
func (p *Project) Registry() *asset.Registry { return p.registry }

// Config returns the project configuration.
func (p *Project) Config() Config { return p.cfg }

func (p *Project) onSourceEvent(ev watch.Event) {
	if p.isSource(ev.Path) {
		p.MarkRebuild()
	}
}

func (p *Project) isSource(path string) bool {
	ext := asset.Ext(path)
	for _, s := range p.cfg.SourceExtensions {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && strings.TrimPrefix(s, ".") == strings.TrimPrefix(ext, ".") {
			return true
		}
	}
	return false
}

// MarkRebuild requests a rebuild on the next Reload. It is safe to call from
// any goroutine.
func (p *Project) MarkRebuild() {
	if !p.needsRebuild.Swap(true) {
		p.logger.Debug("Code module rebuild requested")
	}
}

// StartWatching watches the asset tree and, when it exists, the source tree.
func (p *Project) StartWatching() error {
	if err := p.bank.StartWatching(); err != nil {
		return err
	}
	if info, err := os.Stat(p.cfg.SourceDir); err != nil || !info.IsDir() {
		p.logger.Info("No source directory, code changes are not watched",
			zap.String("dir", p.cfg.SourceDir))
		return nil
	}
	if err := p.sources.Start(); err != nil && !errors.Is(err, watch.ErrRunning) {
		return fmt.Errorf("watch sources: %w", err)
	}
	return nil
}

// StopWatching stops every watcher.
func (p *Project) StopWatching() {
	p.bank.StopWatching()
	p.sources.Stop()
}

// IsWatching reports whether assets are being watched.
func (p *Project) IsWatching() bool {
	return p.bank.IsWatching()
}

// IsWaitingForSync reports whether asset marks are pending.
func (p *Project) IsWaitingForSync() bool {
	return p.bank.IsWaitingForSync()
}

// IsWaitingForRebuild reports whether a rebuild is requested or running.
func (p *Project) IsWaitingForRebuild() bool {
	return p.needsRebuild.Load() || p.buildPending
}

// IsWaitingForReload reports whether Reload has work to do.
func (p *Project) IsWaitingForReload() bool {
	return p.IsWaitingForSync() || p.IsWaitingForRebuild()
}

// IsBuilding reports whether the compiler is running.
func (p *Project) IsBuilding() bool {
	return p.compiler.IsBuilding()
}

// Errors returns the diagnostics of the last failed build, or nil after a
// successful one.
func (p *Project) Errors() []string {
	return p.errors
}

// Reload drives pending work: it starts or finishes a rebuild, then
// synchronizes the bank with the file system. forceFullResync rescans the whole
// tree instead of applying queued marks.
//
// A build runs in the background; the call that observes its completion swaps
// the module. Asset sync proceeds while a build is running.
func (p *Project) Reload(ctx context.Context, forceFullResync bool) (ReloadResult, error) {
	var res ReloadResult

	if p.buildPending && !p.compiler.IsBuilding() {
		p.finishBuild(ctx, &res)
	}

	if !p.buildPending && p.needsRebuild.Swap(false) {
		started, err := p.compiler.Build(ctx)
		if err != nil {
			p.needsRebuild.Store(true)
			return res, fmt.Errorf("start build: %w", err)
		}
		p.buildPending = started
		res.BuildStarted = started
	}

	if forceFullResync || p.bank.IsWaitingForSync() {
		if forceFullResync {
			res.Stats = p.bank.SyncAllFiles()
		} else {
			res.Stats = p.bank.SyncMarkedFiles()
		}
		res.Synced = true
		p.notify(ctx, res.Stats)
	}

	if m := p.host.Current(); m != nil {
		res.ModuleVersion = m.Version()
	}
	return res, nil
}

// Rebuild requests a rebuild and blocks until it is built and swapped in or
// ctx is done.
func (p *Project) Rebuild(ctx context.Context) (ReloadResult, error) {
	p.MarkRebuild()
	res, err := p.Reload(ctx, false)
	if err != nil {
		return res, err
	}
	if _, err := p.compiler.Wait(ctx); err != nil {
		return res, err
	}
	next, err := p.Reload(ctx, false)
	next.BuildStarted = res.BuildStarted
	return next, err
}

func (p *Project) finishBuild(ctx context.Context, res *ReloadResult) {
	p.buildPending = false
	res.BuildFinished = true

	out, _ := p.compiler.Result()
	if !out.Success() {
		res.BuildFailed = true
		p.errors = out.Errors
		return
	}

	wasm, err := os.ReadFile(out.Artifact)
	if err != nil {
		res.BuildFailed = true
		p.errors = []string{fmt.Sprintf("read module: %v", err)}
		p.logger.Error("Built module unreadable", zap.String("artifact", out.Artifact), zap.Error(err))
		return
	}

	next, err := p.host.Prepare(ctx, p.cfg.ModuleName, wasm)
	if err != nil {
		res.BuildFailed = true
		p.errors = []string{err.Error()}
		p.logger.Error("Built module failed to instantiate", zap.Error(err))
		return
	}

	// Nothing of a dependent kind may outlive the module it was loaded against.
	res.Invalidated = p.bank.UnloadKinds(p.registry.ModuleDependentKinds()...)
	p.host.Activate(next)
	p.errors = nil
	res.Swapped = true

	p.logger.Info("Code module swapped",
		zap.Uint64("version", next.Version()),
		zap.Int("invalidated", res.Invalidated))

	if p.archiver != nil {
		if err := p.archiver.Archive(ctx, p.cfg.ModuleName, wasm); err != nil {
			p.logger.Warn("Failed to archive module", zap.Error(err))
		}
	}
}

func (p *Project) notify(ctx context.Context, stats filebank.SyncStats) {
	if len(p.observers) == 0 {
		return
	}
	if !stats.Full && stats.Added+stats.Updated+stats.Removed == 0 {
		return
	}
	tracked := p.bank.Tracked()
	for _, o := range p.observers {
		if err := o.Synced(ctx, tracked, stats); err != nil {
			p.logger.Warn("Sync observer failed", zap.Error(err))
		}
	}
}

// LoadModule loads the last built artifact, if any, without building.
func (p *Project) LoadModule(ctx context.Context) error {
	wasm, err := os.ReadFile(p.compiler.Artifact())
	if err != nil {
		return err
	}
	_, err = p.host.Load(ctx, p.cfg.ModuleName, wasm)
	return err
}

// Close stops watching and unloads the module.
func (p *Project) Close(ctx context.Context) error {
	p.StopWatching()
	if err := p.host.Close(ctx); err != nil {
		p.logger.Warn("Module still referenced at shutdown", zap.Error(err))
	}
	return nil
}
