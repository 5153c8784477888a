package reconcile

// Result represents the reconciliation output for a single asset path.
type Result struct {
	// Path is the root-relative path of the asset file.
	Path string `json:"path"`

	// Guid is the identity the bank tracks for the path, if any.
	Guid string `json:"guid,omitempty"`

	// Kind is the asset kind resolved from the extension.
	Kind string `json:"kind"`

	// BankPresent indicates whether the bank tracks the path.
	BankPresent bool `json:"bank_present"`

	// DiskPresent indicates whether the file exists.
	DiskPresent bool `json:"disk_present"`

	// SidecarPresent indicates whether a sidecar exists for the path.
	SidecarPresent bool `json:"sidecar_present"`

	// SidecarGuid is the identity recorded in the sidecar. It is empty when the
	// sidecar is missing or unreadable.
	SidecarGuid string `json:"sidecar_guid,omitempty"`

	// ShadowedBy is the tracked path that holds this file's kind and name.
	ShadowedBy string `json:"shadowed_by,omitempty"`

	// Mismatch contains descriptions of discrepancies between the sources,
	// e.g. "guid: bank=... sidecar=...".
	Mismatch []string `json:"mismatch"`
}

// Consistent reports whether every source agrees about the path.
func (r Result) Consistent() bool {
	return r.BankPresent && r.DiskPresent && r.SidecarPresent && len(r.Mismatch) == 0
}

// ActionType represents the type of repair action.
type ActionType string

const (
	// ActionAddFile registers an untracked file with the bank.
	ActionAddFile ActionType = "add_file"
	// ActionRemoveEntry drops an entry whose file is gone.
	ActionRemoveEntry ActionType = "remove_entry"
	// ActionRewriteSidecar persists the tracked identity to the sidecar.
	ActionRewriteSidecar ActionType = "rewrite_sidecar"
)

// Action represents a planned repair.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Path is the root-relative asset path the action applies to.
	Path string `json:"path"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`
}

// Plan contains reconciliation results and planned actions.
type Plan struct {
	Results []Result `json:"results"`
	Actions []Action `json:"actions"`
	Summary Summary  `json:"summary"`
}

// Summary provides aggregate counts for a plan.
type Summary struct {
	// TotalItems is the number of distinct asset paths seen in any source.
	TotalItems int `json:"total_items"`

	// MissingBank counts files on disk the bank does not track.
	MissingBank int `json:"missing_bank"`

	// MissingDisk counts tracked entries whose file is gone.
	MissingDisk int `json:"missing_disk"`

	// MissingSidecar counts files on disk without a sidecar.
	MissingSidecar int `json:"missing_sidecar"`

	// OrphanSidecars counts sidecars whose asset file is gone.
	OrphanSidecars int `json:"orphan_sidecars"`

	// Shadowed counts files hidden by another file of the same kind and name.
	Shadowed int `json:"shadowed"`

	// Mismatches counts paths with at least one discrepancy.
	Mismatches int `json:"mismatches"`

	// AddActions, RemoveActions and RewriteActions count planned actions.
	AddActions     int `json:"add_actions"`
	RemoveActions  int `json:"remove_actions"`
	RewriteActions int `json:"rewrite_actions"`
}

// Options controls whether repairs are planned and executed.
type Options struct {
	// Fix plans repair actions.
	Fix bool

	// DryRun prevents execution of any repair if true.
	DryRun bool

	// Confirmed indicates the caller accepted the repairs. If false, nothing is
	// executed regardless of DryRun.
	Confirmed bool
}
