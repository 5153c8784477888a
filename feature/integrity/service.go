package integrity

import (
	"context"
	"errors"
	"time"

	"asset-bank/core/asset"
	"asset-bank/core/filebank"
	"asset-bank/core/project"
	"asset-bank/core/reconcile"

	"go.uber.org/zap"
)

// ErrNoCatalog is returned by CheckCatalog when no catalog is configured.
var ErrNoCatalog = errors.New("catalog not configured")

// SchemaVerifier checks a database schema.
type SchemaVerifier interface {
	Verify(ctx context.Context) error
}

// FixReport is the outcome of an asset repair.
type FixReport struct {
	Plan     *reconcile.Plan `json:"plan"`
	DryRun   bool            `json:"dry_run"`
	Executed int             `json:"executed"`
	Errors   []string        `json:"errors,omitempty"`
}

// Service handles integrity checks.
type Service struct {
	loop    *project.Loop
	catalog SchemaVerifier
	cache   *reconcile.Cache
	logger  *zap.Logger
}

// NewService creates a new integrity service. catalog may be nil.
func NewService(loop *project.Loop, catalog SchemaVerifier, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		loop:    loop,
		catalog: catalog,
		cache:   reconcile.NewCache(cacheTTL),
		logger:  logger,
	}
}

type bankView struct {
	root     string
	registry *asset.Registry
	isAsset  reconcile.IsAsset
	tracked  []filebank.Tracked
}

// snapshot pairs the bank's entries with the disk indices. fresh bypasses the
// cache.
func (s *Service) snapshot(ctx context.Context, fresh bool) (*reconcile.Snapshot, string, error) {
	var view bankView
	err := s.loop.Do(ctx, func(p *project.Project) error {
		bank := p.Bank()
		view = bankView{
			root:     bank.Root(),
			registry: p.Registry(),
			isAsset:  bank.IsAssetPath,
			tracked:  bank.Tracked(),
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if fresh {
		s.cache.Invalidate(view.root)
	}
	idx, err := s.cache.GetOrScan(ctx, view.root, view.registry, view.isAsset)
	if err != nil {
		return nil, "", err
	}
	return idx.With(view.tracked), view.root, nil
}

// CheckAssets reconciles the bank with the disk without changing anything.
func (s *Service) CheckAssets(ctx context.Context) (*reconcile.Plan, error) {
	snap, _, err := s.snapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	return reconcile.BuildPlan(reconcile.Reconcile(snap), reconcile.Options{}), nil
}

// FixAssets plans repairs and, unless dryRun, applies them on the main loop.
func (s *Service) FixAssets(ctx context.Context, dryRun bool) (*FixReport, error) {
	snap, root, err := s.snapshot(ctx, true)
	if err != nil {
		return nil, err
	}
	opts := reconcile.Options{Fix: true, DryRun: dryRun, Confirmed: true}
	plan := reconcile.BuildPlan(reconcile.Reconcile(snap), opts)

	report := &FixReport{Plan: plan, DryRun: dryRun}
	if dryRun || len(plan.Actions) == 0 {
		return report, nil
	}

	var applyErr error
	err = s.loop.Do(ctx, func(p *project.Project) error {
		report.Executed, applyErr = reconcile.ApplyPlan(p.Bank(), plan, opts)
		return nil
	})
	s.cache.Invalidate(root)
	if err != nil {
		return nil, err
	}
	if applyErr != nil {
		s.logger.Warn("Some asset repairs failed", zap.Error(applyErr))
		report.Errors = append(report.Errors, applyErr.Error())
	}
	s.logger.Info("Asset repairs applied",
		zap.Int("planned", len(plan.Actions)),
		zap.Int("executed", report.Executed))
	return report, nil
}

// CheckCatalog verifies the catalog schema.
func (s *Service) CheckCatalog(ctx context.Context) error {
	if s.catalog == nil {
		return ErrNoCatalog
	}
	return s.catalog.Verify(ctx)
}
