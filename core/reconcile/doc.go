// Package reconcile checks a file-backed asset bank against the disk it
// mirrors.
//
// Three sources of truth are compared, keyed by the normalized path of each
// asset file:
//
//  1. Bank: the entries the filebank tracks, with their identities.
//  2. Disk: the asset files present below the root.
//  3. Sidecars: the identities recorded in the <file>.meta documents.
//
// # Architecture
//
// Scan builds the disk and sidecar indices concurrently and pairs them with a
// snapshot of the bank. Reconcile turns the union of keys into one Result per
// path, recording presence in each source and every mismatch found. BuildPlan
// summarizes the results and, when fixing is requested, plans actions:
//
//   - add_file: a file on disk the bank does not track
//   - remove_entry: a tracked entry whose file is gone
//   - rewrite_sidecar: a tracked file whose sidecar is missing, unreadable or
//     names another identity
//
// ApplyPlan executes a plan through the filebank. It mutates the bank, so it
// must run on the goroutine that owns it.
//
// # Cache
//
// Walking a large tree is the expensive part. GetOrScan keeps the disk and
// sidecar indices per root for a TTL and collapses concurrent scans of the
// same root into one.
//
// # Usage Example
//
//	snap, err := reconcile.Scan(ctx, bank.Root(), registry, bank.IsAssetPath, bank.Tracked())
//	plan := reconcile.BuildPlan(reconcile.Reconcile(snap), reconcile.Options{Fix: true})
//	executed, err := reconcile.ApplyPlan(bank, plan, reconcile.Options{Fix: true, Confirmed: true})
package reconcile
