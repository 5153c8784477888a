// Package catalog mirrors the asset bank into a database table.
//
// After every sync that changed the bank, Service.Synced upserts one row per
// tracked entry into asset_entries and deletes rows whose identity is gone.
// External tools can then query assets by kind, name or path without reading
// sidecars. The mirror is write-only from the bank's point of view; the bank
// never reads identities back from it.
//
// # HTTP
//
//	GET /catalog?kind=&prefix=   list mirrored entries
//	GET /catalog/:guid           one entry
package catalog
