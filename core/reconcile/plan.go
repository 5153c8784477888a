package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"asset-bank/core/filebank"
)

// BuildPlan summarizes results and, when opts.Fix is set, plans the repairs.
// It does NOT execute them; use ApplyPlan for that.
func BuildPlan(results []Result, opts Options) *Plan {
	plan := &Plan{Results: results, Actions: []Action{}}
	s := &plan.Summary
	s.TotalItems = len(results)

	for _, r := range results {
		if r.DiskPresent && !r.BankPresent {
			s.MissingBank++
		}
		if r.BankPresent && !r.DiskPresent {
			s.MissingDisk++
		}
		if r.DiskPresent && !r.SidecarPresent {
			s.MissingSidecar++
		}
		if r.SidecarPresent && !r.DiskPresent {
			s.OrphanSidecars++
		}
		if r.ShadowedBy != "" {
			s.Shadowed++
		}
		if len(r.Mismatch) > 0 {
			s.Mismatches++
		}

		if !opts.Fix {
			continue
		}
		switch {
		case r.DiskPresent && !r.BankPresent && r.ShadowedBy == "":
			plan.Actions = append(plan.Actions, Action{Type: ActionAddFile, Path: r.Path, Reason: "missing in: bank"})
			s.AddActions++
		case r.BankPresent && !r.DiskPresent:
			plan.Actions = append(plan.Actions, Action{Type: ActionRemoveEntry, Path: r.Path, Reason: "missing in: disk"})
			s.RemoveActions++
		case r.BankPresent && r.DiskPresent && (!r.SidecarPresent || r.SidecarGuid != r.Guid):
			plan.Actions = append(plan.Actions, Action{Type: ActionRewriteSidecar, Path: r.Path, Reason: sidecarReason(r)})
			s.RewriteActions++
		}
	}
	return plan
}

func sidecarReason(r Result) string {
	if !r.SidecarPresent {
		return "missing in: sidecar"
	}
	if len(r.Mismatch) > 0 {
		return "mismatch: " + strings.Join(r.Mismatch, "; ")
	}
	return "sidecar unreadable"
}

// ApplyPlan executes the actions of plan against bank and returns how many
// succeeded. It requires opts.Confirmed and !opts.DryRun to do anything.
//
// Every action re-checks the disk first, so a plan built from a stale snapshot
// never re-adds a deleted file or drops a file that came back. Failures do not
// stop the remaining actions; they are joined into the returned error.
func ApplyPlan(bank *filebank.Bank, plan *Plan, opts Options) (int, error) {
	if !opts.Confirmed || opts.DryRun {
		return 0, nil
	}

	root := bank.Root()
	executed := 0
	var errs []error
	for _, a := range plan.Actions {
		switch a.Type {
		case ActionAddFile:
			if !exists(root, a.Path) {
				continue
			}
			if bank.AddFile(a.Path) == nil {
				errs = append(errs, fmt.Errorf("add %s: not registered", a.Path))
				continue
			}
		case ActionRemoveEntry:
			if exists(root, a.Path) || !bank.RemoveFile(a.Path) {
				continue
			}
		case ActionRewriteSidecar:
			if !exists(root, a.Path) {
				continue
			}
			if err := bank.RewriteSidecar(a.Path); err != nil {
				errs = append(errs, fmt.Errorf("rewrite sidecar of %s: %w", a.Path, err))
				continue
			}
		default:
			errs = append(errs, fmt.Errorf("unknown action %q for %s", a.Type, a.Path))
			continue
		}
		executed++
	}
	return executed, errors.Join(errs...)
}
