package filebank

// ChangeKind is the kind of change a mark records.
type ChangeKind uint8

const (
	Created ChangeKind = iota + 1
	Changed
	Deleted
)

func (c ChangeKind) String() string {
	switch c {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Mark is a queued, not yet applied file change.
type Mark struct {
	// Path is root-relative and normalized.
	Path   string
	Change ChangeKind
}
