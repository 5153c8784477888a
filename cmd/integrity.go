package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"asset-bank/core/middleware/auth"
	"asset-bank/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// integrityCmd represents the integrity command
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check the bank of a running asset bank against the disk",
	Long: `Asks a running asset bank to reconcile its entries with the files and sidecars
on disk. With --fix the drift is repaired; add --dry-run to only print the plan.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()
		fix, _ := cmd.Flags().GetBool("fix")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		addr, _ := cmd.Flags().GetString("addr")

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		if addr == "" {
			addr = "http://localhost" + e.cfg.Server.Address()
		}
		url := strings.TrimSuffix(addr, "/") + "/integrity/assets"
		if fix {
			url += fmt.Sprintf("?fix=true&dry_run=%t", dryRun)
		}

		agent := fiber.Get(url).Timeout(5 * time.Minute)
		if e.cfg.Server.ApiKey != "" {
			agent.Set(auth.Header, e.cfg.Server.ApiKey)
		}
		code, body, errs := agent.Bytes()
		if len(errs) > 0 {
			return fmt.Errorf("integrity request failed: %w", errs[0])
		}
		if code != fiber.StatusOK {
			return fmt.Errorf("integrity request failed with status %d: %s", code, body)
		}

		var report struct {
			reconcile.Plan
			Fix      *reconcile.Plan `json:"plan"`
			Executed int             `json:"executed"`
			Errors   []string        `json:"errors"`
		}
		if err := json.Unmarshal(body, &report); err != nil {
			return fmt.Errorf("failed to decode integrity report: %w", err)
		}
		plan := &report.Plan
		if report.Fix != nil {
			plan = report.Fix
		}

		if jsonOutput {
			filename := fmt.Sprintf("integrity_assets_%d.json", time.Now().Unix())
			data, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			if err := os.WriteFile(filename, data, 0o644); err != nil {
				return fmt.Errorf("failed to save JSON file: %w", err)
			}
			fmt.Printf("Detailed JSON saved to: %s\n", filename)
		}

		s := plan.Summary
		fmt.Println("\n=== Asset Integrity Metrics ===")
		fmt.Printf("Total Items: %d\n", s.TotalItems)
		fmt.Printf("Bank Missing: %d\n", s.MissingBank)
		fmt.Printf("Disk Missing: %d\n", s.MissingDisk)
		fmt.Printf("Sidecar Missing: %d\n", s.MissingSidecar)
		fmt.Printf("Orphan Sidecars: %d\n", s.OrphanSidecars)
		fmt.Printf("Shadowed: %d\n", s.Shadowed)
		fmt.Printf("Mismatch: %d\n", s.Mismatches)
		if fix {
			fmt.Printf("Planned Actions: %d\n", len(plan.Actions))
			fmt.Printf("Executed Actions: %d\n", report.Executed)
			for _, msg := range report.Errors {
				fmt.Printf("Error: %s\n", msg)
			}
		}
		fmt.Printf("Execution Time: %s\n", time.Since(startTime))

		e.logger.Info("Asset integrity check completed",
			zap.Int("total", s.TotalItems),
			zap.Int("mismatch", s.Mismatches),
			zap.Int("executed", report.Executed),
		)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.Flags().Bool("fix", false, "Repair the drift")
	integrityCmd.Flags().Bool("dry-run", false, "With --fix, only print the planned repairs")
	integrityCmd.Flags().Bool("json", false, "Save the detailed report as JSON")
	integrityCmd.Flags().String("addr", "", "Base URL of the running asset bank (default http://localhost:<server.port>)")
}
