package reconcile

import (
	"fmt"
	"sort"

	"asset-bank/core/asset"
)

type nameKey struct {
	kind asset.Kind
	name string
}

// Reconcile builds one result per path present in any source, ordered by path.
func Reconcile(snap *Snapshot) []Result {
	byName := make(map[nameKey]string, len(snap.Bank))
	for _, t := range snap.Bank {
		byName[nameKey{t.Kind, asset.PathKey(t.Name)}] = t.Path
	}

	union := make(map[string]struct{}, len(snap.Disk))
	for key := range snap.Bank {
		union[key] = struct{}{}
	}
	for key := range snap.Disk {
		union[key] = struct{}{}
	}
	for key := range snap.Sidecars {
		union[key] = struct{}{}
	}

	results := make([]Result, 0, len(union))
	for key := range union {
		results = append(results, buildResult(key, snap, byName))
	}
	sort.Slice(results, func(i, j int) bool {
		return asset.PathKey(results[i].Path) < asset.PathKey(results[j].Path)
	})
	return results
}

func buildResult(key string, snap *Snapshot, byName map[nameKey]string) Result {
	tracked, inBank := snap.Bank[key]
	file, onDisk := snap.Disk[key]
	sc, hasSidecar := snap.Sidecars[key]

	r := Result{
		BankPresent:    inBank,
		DiskPresent:    onDisk,
		SidecarPresent: hasSidecar,
		Mismatch:       []string{},
	}
	switch {
	case inBank:
		r.Path = tracked.Path
		r.Guid = tracked.Guid.String()
		r.Kind = tracked.Kind.String()
	case onDisk:
		r.Path = file.Path
		r.Kind = file.Kind.String()
	default:
		r.Path = sc.Path
		r.Kind = asset.KindUnknown.String()
	}

	if hasSidecar {
		if sc.Err != nil {
			r.Mismatch = append(r.Mismatch, fmt.Sprintf("sidecar: %v", sc.Err))
		} else {
			r.SidecarGuid = sc.Guid.String()
		}
	}

	if inBank && hasSidecar && sc.Err == nil && sc.Guid != tracked.Guid {
		r.Mismatch = append(r.Mismatch, fmt.Sprintf("guid: bank=%s sidecar=%s", tracked.Guid, sc.Guid))
	}
	if inBank && onDisk && file.Kind != tracked.Kind {
		r.Mismatch = append(r.Mismatch, fmt.Sprintf("kind: bank=%s disk=%s", tracked.Kind, file.Kind))
	}
	if onDisk && !inBank {
		if holder, ok := byName[nameKey{file.Kind, asset.PathKey(file.Name)}]; ok {
			r.ShadowedBy = holder
		}
	}
	return r
}
