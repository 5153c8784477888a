// Package integrity provides health checks for a running asset project.
//
// # Checks Provided
//
//   - Assets: reconciles the bank against the files and sidecars on disk (see
//     core/reconcile) and optionally repairs the drift.
//   - Catalog: validates that the catalog table has every column the mirror
//     writes.
//
// The disk walk runs off the main loop; only the bank snapshot and the repairs
// are marshalled onto it.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/assets : Runs the asset check (supports ?fix=true and ?dry_run=true).
//   - GET /integrity/catalog : Runs the catalog schema check.
package integrity
