package filebank

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"asset-bank/core/asset"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// MetaExt is the extension of sidecar files.
const MetaExt = ".meta"

const guidField = "guid"

var errNoGuid = errors.New("sidecar has no valid guid")

// Sidecar is the decoded content of a .meta file.
type Sidecar struct {
	Guid asset.Guid
	// Fields holds every field of the document, guid included.
	Fields asset.Metadata
}

// SidecarPath returns the sidecar path of an asset file.
func SidecarPath(assetPath string) string {
	return assetPath + MetaExt
}

// ReadSidecar reads the sidecar of assetPath. Comments and trailing commas are
// tolerated. The returned Sidecar carries whatever fields parsed even when the
// guid is missing or invalid, so that a rewrite can preserve them.
func ReadSidecar(assetPath string) (Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(assetPath))
	if err != nil {
		return Sidecar{}, err
	}
	return decodeSidecar(data)
}

func decodeSidecar(data []byte) (Sidecar, error) {
	standard, err := hujson.Standardize(data)
	if err != nil {
		return Sidecar{}, fmt.Errorf("parse sidecar: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(standard, &fields); err != nil {
		return Sidecar{}, fmt.Errorf("decode sidecar: %w", err)
	}

	sc := Sidecar{Fields: asset.Metadata(fields)}
	raw, ok := fields[guidField].(string)
	if !ok {
		return sc, errNoGuid
	}
	g, err := asset.ParseGuid(raw)
	if err != nil {
		return sc, fmt.Errorf("%w: %v", errNoGuid, err)
	}
	sc.Guid = g
	return sc, nil
}

// WriteSidecar atomically writes the sidecar of assetPath. Extra fields are kept;
// the guid field always reflects guid.
func WriteSidecar(assetPath string, guid asset.Guid, extra asset.Metadata) error {
	data, err := encodeSidecar(guid, extra)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(SidecarPath(assetPath), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

func encodeSidecar(guid asset.Guid, extra asset.Metadata) ([]byte, error) {
	// Map keys are marshalled in sorted order, so output is stable.
	doc := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		doc[k] = v
	}
	doc[guidField] = guid.String()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode sidecar: %w", err)
	}
	return append(data, '\n'), nil
}
