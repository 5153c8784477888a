package catalog

import "time"

// TableName is the name of the mirror table.
const TableName = "asset_entries"

// Entry is one mirrored asset.
type Entry struct {
	Guid      string    `gorm:"column:guid;primaryKey;size:36" json:"guid"`
	Kind      string    `gorm:"column:kind;size:16;index;not null" json:"kind"`
	Name      string    `gorm:"column:name;size:512;index;not null" json:"name"`
	Path      string    `gorm:"column:path;size:1024;not null" json:"path"`
	Loaded    bool      `gorm:"column:loaded" json:"loaded"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName implements gorm's tabler interface.
func (Entry) TableName() string {
	return TableName
}

// Columns lists the columns the mirror writes.
var Columns = []string{"guid", "kind", "name", "path", "loaded", "updated_at"}
