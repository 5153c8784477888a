package cmd

import (
	"fmt"
	"os"

	"asset-bank/feature/artifacts"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the code module once",
	Long: `Runs the configured build command, prints its diagnostics and checks that the
produced module instantiates. With --publish the module is archived to object storage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		publish, _ := cmd.Flags().GetBool("publish")

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		var archive *artifacts.Service
		if publish {
			store, err := e.openStorage(ctx)
			if err != nil {
				return fmt.Errorf("publish requires object storage: %w", err)
			}
			archive = artifacts.NewService(store, e.cfg.Storage.Bucket, e.logger)
		}

		p, err := e.newProject(nil)
		if err != nil {
			return err
		}
		defer p.Close(ctx)

		res, err := p.Rebuild(ctx)
		if err != nil {
			return err
		}
		out, _ := p.Compiler().Result()
		for _, line := range out.Output {
			fmt.Println(line)
		}

		if res.BuildFailed {
			fmt.Println("\n=== Build Errors ===")
			for _, line := range p.Errors() {
				fmt.Println(line)
			}
			return fmt.Errorf("build failed with %d errors", len(p.Errors()))
		}

		fmt.Printf("\nBuilt %s in %s\n", out.Artifact, out.Duration)

		if archive != nil {
			wasm, err := os.ReadFile(out.Artifact)
			if err != nil {
				return err
			}
			if err := archive.Archive(ctx, e.cfg.Project.ModuleName, wasm); err != nil {
				return fmt.Errorf("failed to publish module: %w", err)
			}
			fmt.Printf("Published %s (%s)\n", e.cfg.Project.ModuleName, artifacts.Digest(wasm))
		}
		e.logger.Info("Code module built",
			zap.String("artifact", out.Artifact),
			zap.Bool("published", publish))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(buildCmd)
	buildCmd.Flags().Bool("publish", false, "Archive the built module to object storage")
}
