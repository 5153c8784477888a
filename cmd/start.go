package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asset-bank/core/loader"
	"asset-bank/core/logger"
	"asset-bank/core/middleware/auth"
	"asset-bank/core/middleware/rayid"
	"asset-bank/core/project"
	"asset-bank/feature/artifacts"
	"asset-bank/feature/catalog"
	"asset-bank/feature/editor"
	"asset-bank/feature/integrity"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the asset bank",
	Long: `Scans the asset tree, loads the code module, then keeps both in sync with the
disk from the main loop while serving the editor API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Configuration and Logger
		e, err := loadEnv()
		if err != nil {
			return err
		}
		logg := e.logger
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 2. Optional backends
		b := e.connect(ctx)

		// 3. Project and initial state
		p, err := e.newProject(b)
		if err != nil {
			return err
		}
		if _, err := p.Reload(ctx, true); err != nil {
			return err
		}
		restoreModule(ctx, p, b, logg)
		if e.cfg.Project.Watch {
			if err := p.StartWatching(); err != nil {
				logg.Warn("File watching unavailable, use POST /reload", zap.Error(err))
			}
		}

		// 4. Main loop. From here on the project is only touched through it.
		loop := project.NewLoop(p, e.cfg.Project.TickInterval())
		loopDone := make(chan error, 1)
		go func() { loopDone <- loop.Run(ctx) }()

		// 5. Editor API
		var app *fiber.App
		if e.cfg.Server.Enabled {
			app, err = newApp(e, loop, b)
			if err != nil {
				stop()
				<-loopDone
				return err
			}
			go func() {
				logg.Info("Starting server", zap.String("port", e.cfg.Server.Port))
				if err := app.Listen(e.cfg.Server.Address()); err != nil {
					logg.Error("Server stopped", zap.Error(err))
					stop()
				}
			}()
		}

		logg.Info("Asset bank running",
			zap.String("root", p.Bank().Root()),
			zap.Duration("tick", e.cfg.Project.TickInterval()))

		// 6. Graceful Shutdown
		<-ctx.Done()
		logg.Info("Shutting down...")
		if app != nil {
			timeout := time.Duration(e.cfg.Server.ShutdownSeconds) * time.Second
			if err := app.ShutdownWithTimeout(timeout); err != nil {
				logg.Warn("Server shutdown incomplete", zap.Error(err))
			}
		}
		if err := <-loopDone; err != nil {
			logg.Warn("Main loop stopped with error", zap.Error(err))
		}
		return p.Close(context.Background())
	},
}

// restoreModule loads the last built module from disk, falling back to the
// archive, and otherwise requests a build.
func restoreModule(ctx context.Context, p *project.Project, b *backends, logg *zap.Logger) {
	err := p.LoadModule(ctx)
	if err == nil {
		logg.Info("Code module loaded", zap.String("artifact", p.Compiler().Artifact()))
		return
	}
	if !errors.Is(err, os.ErrNotExist) {
		logg.Warn("Built code module unusable", zap.Error(err))
	}

	if b.artifacts != nil {
		name := p.Config().ModuleName
		wasm, digest, err := b.artifacts.Fetch(ctx, name)
		if err == nil {
			if _, err = p.Host().Load(ctx, name, wasm); err == nil {
				logg.Info("Code module restored from archive", zap.String("digest", digest))
				return
			}
		}
		if !errors.Is(err, artifacts.ErrNoArchive) {
			logg.Warn("Archived code module unusable", zap.Error(err))
		}
	}

	if info, err := os.Stat(p.Config().SourceDir); err == nil && info.IsDir() {
		p.MarkRebuild()
	}
}

func newApp(e *env, loop *project.Loop, b *backends) (*fiber.App, error) {
	logg := e.logger
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// 1. RayID (Must be first to trace everything)
	app.Use(rayid.New())

	// 2. Request logging
	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		l.Debug("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	// 3. Auth
	app.Use(auth.New(auth.Config{ApiKey: e.cfg.Server.ApiKey}))

	// 4. Features
	var verifier integrity.SchemaVerifier
	if b.catalog != nil {
		verifier = b.catalog
	}
	mgr := loader.NewManager(logg)
	mgr.Register(
		editor.NewFeature(loop, logg),
		integrity.NewFeature(loop, verifier, logg),
		catalog.NewFeature(b.db, logg, b.catalog != nil),
		artifacts.NewFeature(b.store, e.cfg.Storage.Bucket, logg, b.artifacts != nil),
	)
	if _, err := mgr.LoadAll(app); err != nil {
		return nil, err
	}
	return app, nil
}

func init() {
	RootCmd.AddCommand(startCmd)
}
