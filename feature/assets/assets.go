package assets

import (
	"errors"
	"fmt"

	"asset-bank/core/asset"
	"asset-bank/core/module"
)

// Extensions maps each built-in kind to the extensions it loads.
var Extensions = map[asset.Kind][]string{
	asset.KindTexture: {".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"},
	asset.KindAudio:   {".wav", ".ogg", ".mp3"},
	asset.KindData:    {".json"},
	asset.KindText:    {".txt", ".md"},
	asset.KindPrefab:  {".prefab"},
}

// Register installs the loaders of every built-in kind. host supplies the code
// module prefabs bind to.
func Register(reg *asset.Registry, host *module.Host) error {
	err := errors.Join(
		reg.Register(asset.KindTexture, Extensions[asset.KindTexture], LoadTexture),
		reg.Register(asset.KindAudio, Extensions[asset.KindAudio], LoadAudio),
		reg.Register(asset.KindData, Extensions[asset.KindData], LoadData),
		reg.Register(asset.KindText, Extensions[asset.KindText], LoadText),
		reg.Register(asset.KindPrefab, Extensions[asset.KindPrefab], PrefabLoader(host), asset.ModuleDependent()),
	)
	if err != nil {
		return fmt.Errorf("register asset loaders: %w", err)
	}
	return nil
}

// base carries the identity assigned by the bank.
type base struct {
	guid asset.Guid
}

// SetGuid implements asset.GuidSetter.
func (b *base) SetGuid(g asset.Guid) { b.guid = g }

// Guid returns the identity of the asset.
func (b *base) Guid() asset.Guid { return b.guid }
