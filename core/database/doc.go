// Package database opens the catalog database and inspects its schema.
//
// It wraps GORM so the catalog can run against MySQL in shared setups or a local
// SQLite file for a single editor.
//
// # Schema Inspection
//
// TableColumns and MissingColumns read the live table definition. The catalog
// uses them to verify that an existing table still matches the columns it
// writes before mirroring into it.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	missing, err := database.MissingColumns(db, "asset_entries", []string{"guid", "kind"})
package database
