package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"asset-bank/core/asset"
	"asset-bank/core/filebank"

	"golang.org/x/sync/errgroup"
)

// DiskFile is an asset file found below the root.
type DiskFile struct {
	Path string
	Kind asset.Kind
	Name string
}

// SidecarState is what a sidecar on disk holds.
type SidecarState struct {
	// Path is the root-relative path of the asset the sidecar belongs to.
	Path string
	Guid asset.Guid
	// Err is set when the sidecar exists but has no usable identity.
	Err error
}

// Snapshot holds the three indices, each keyed by asset.PathKey.
type Snapshot struct {
	Bank     map[string]filebank.Tracked
	Disk     map[string]DiskFile
	Sidecars map[string]SidecarState
	Built    time.Time
}

// Indices are the disk side of a snapshot. They do not depend on the bank.
type Indices struct {
	Disk     map[string]DiskFile
	Sidecars map[string]SidecarState
	Built    time.Time
}

// IsAsset reports whether a path would be tracked by the bank.
type IsAsset func(path string) bool

// Scan walks root and pairs the result with tracked, the bank's entries.
func Scan(ctx context.Context, root string, registry *asset.Registry, isAsset IsAsset, tracked []filebank.Tracked) (*Snapshot, error) {
	idx, err := ScanDisk(ctx, root, registry, isAsset)
	if err != nil {
		return nil, err
	}
	return idx.With(tracked), nil
}

// With pairs the indices with a bank snapshot.
func (idx *Indices) With(tracked []filebank.Tracked) *Snapshot {
	bank := make(map[string]filebank.Tracked, len(tracked))
	for _, t := range tracked {
		bank[asset.PathKey(t.Path)] = t
	}
	return &Snapshot{
		Bank:     bank,
		Disk:     idx.Disk,
		Sidecars: idx.Sidecars,
		Built:    idx.Built,
	}
}

// ScanDisk builds the disk and sidecar indices of root concurrently.
func ScanDisk(ctx context.Context, root string, registry *asset.Registry, isAsset IsAsset) (*Indices, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve asset root: %w", err)
	}

	var (
		disk     map[string]DiskFile
		sidecars map[string]SidecarState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		disk, err = scanFiles(gctx, root, registry, isAsset)
		return err
	})
	g.Go(func() error {
		var err error
		sidecars, err = scanSidecars(gctx, root, isAsset)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Indices{Disk: disk, Sidecars: sidecars, Built: time.Now()}, nil
}

func scanFiles(ctx context.Context, root string, registry *asset.Registry, isAsset IsAsset) (map[string]DiskFile, error) {
	out := make(map[string]DiskFile)
	err := walk(ctx, root, func(rel string) {
		if !isAsset(rel) {
			return
		}
		kind, _ := registry.ResolvePath(rel)
		out[asset.PathKey(rel)] = DiskFile{Path: rel, Kind: kind, Name: asset.LogicalName(rel)}
	})
	if err != nil {
		return nil, fmt.Errorf("scan asset files: %w", err)
	}
	return out, nil
}

func scanSidecars(ctx context.Context, root string, isAsset IsAsset) (map[string]SidecarState, error) {
	out := make(map[string]SidecarState)
	err := walk(ctx, root, func(rel string) {
		if asset.Ext(rel) != filebank.MetaExt {
			return
		}
		assetRel := rel[:len(rel)-len(filebank.MetaExt)]
		if !isAsset(assetRel) {
			return
		}
		sc, err := filebank.ReadSidecar(filepath.Join(root, filepath.FromSlash(assetRel)))
		out[asset.PathKey(assetRel)] = SidecarState{Path: assetRel, Guid: sc.Guid, Err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("scan sidecars: %w", err)
	}
	return out, nil
}

// walk calls fn with the normalized root-relative path of every regular file.
func walk(ctx context.Context, root string, fn func(rel string)) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		fn(asset.NormalizePath(filepath.ToSlash(rel)))
		return nil
	})
}

// exists reports whether the file at rel below root still exists. It is used
// to re-check candidates right before a repair.
func exists(root, rel string) bool {
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}
