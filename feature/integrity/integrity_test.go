package integrity_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"asset-bank/core/asset"
	"asset-bank/core/filebank"
	"asset-bank/core/project"
	"asset-bank/core/reconcile"
	"asset-bank/feature/integrity"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(ctx context.Context) error

func (f verifierFunc) Verify(ctx context.Context) error { return f(ctx) }

type fixture struct {
	root    string
	project *project.Project
	loop    *project.Loop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	reg := asset.NewRegistry()
	require.NoError(t, reg.Register(asset.KindText, []string{".txt"}, func(r io.Reader, _ asset.Metadata) (asset.Asset, error) {
		_, err := io.ReadAll(r)
		return struct{}{}, err
	}))
	p, err := project.New(project.Config{Root: root, SourceDir: t.TempDir(), OutputDir: t.TempDir()}, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	loop := project.NewLoop(p, time.Hour)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = p.Close(context.Background())
	})
	return &fixture{root: root, project: p, loop: loop}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.root, rel), []byte(content), 0o644))
}

// seed syncs two files, then drops a sidecar and adds an untracked file.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	f.write(t, "a.txt", "a")
	f.write(t, "b.txt", "b")
	require.NoError(t, f.loop.Do(context.Background(), func(p *project.Project) error {
		p.Bank().SyncAllFiles()
		return nil
	}))
	require.NoError(t, os.Remove(filebank.SidecarPath(filepath.Join(f.root, "b.txt"))))
	f.write(t, "c.txt", "c")
}

func TestService_CheckAndFix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)
	svc := integrity.NewService(f.loop, nil, time.Minute, nil)

	plan, err := svc.CheckAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Summary.TotalItems)
	assert.Equal(t, 1, plan.Summary.MissingBank)
	assert.Equal(t, 2, plan.Summary.MissingSidecar)
	assert.Empty(t, plan.Actions)

	dry, err := svc.FixAssets(ctx, true)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Len(t, dry.Plan.Actions, 2)
	assert.Zero(t, dry.Executed)

	report, err := svc.FixAssets(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Executed)
	assert.Empty(t, report.Errors)

	plan, err = svc.CheckAssets(ctx)
	require.NoError(t, err)
	for _, r := range plan.Results {
		assert.True(t, r.Consistent(), r.Path)
	}

	require.NoError(t, f.loop.Do(ctx, func(p *project.Project) error {
		assert.Equal(t, 3, p.Bank().Len())
		return nil
	}))
}

func TestService_CheckCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, integrity.NewService(f.loop, nil, 0, nil).CheckCatalog(ctx), integrity.ErrNoCatalog)

	boom := errors.New("missing column")
	svc := integrity.NewService(f.loop, verifierFunc(func(context.Context) error { return boom }), 0, nil)
	assert.ErrorIs(t, svc.CheckCatalog(ctx), boom)
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	feature := integrity.NewFeature(f.loop, verifierFunc(func(context.Context) error { return nil }), nil)
	assert.Equal(t, "integrity", feature.Name())
	assert.True(t, feature.IsEnabled())

	app := fiber.New()
	require.NoError(t, feature.Load(app))

	resp, err := app.Test(httptest.NewRequest("GET", "/integrity", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var all map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Equal(t, "ok", all["assets"]["status"])
	assert.Equal(t, "ok", all["catalog"]["status"])

	resp, err = app.Test(httptest.NewRequest("GET", "/integrity/assets", nil), 5000)
	require.NoError(t, err)
	var plan reconcile.Plan
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&plan))
	assert.Equal(t, 1, plan.Summary.MissingBank)

	resp, err = app.Test(httptest.NewRequest("GET", "/integrity/assets?fix=true", nil), 5000)
	require.NoError(t, err)
	var report integrity.FixReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 2, report.Executed)

	resp, err = app.Test(httptest.NewRequest("GET", "/integrity/catalog", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
