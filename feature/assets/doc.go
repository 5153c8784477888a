// Package assets provides the built-in asset kinds and their loaders.
//
// # Kinds
//
//   - Texture: .png .jpg .jpeg .gif .bmp .tif .tiff .webp, decoded to image.Image.
//   - Audio: .wav .ogg .mp3, kept encoded; WAV headers are parsed for format info.
//   - Data: .json, parsed leniently (comments and trailing commas allowed).
//   - Text: .txt .md.
//   - Prefab: .prefab, a JSON document naming a type exported by the code
//     module. Prefabs hold a reference to the module they were loaded against
//     and are therefore module-dependent.
//
// # Usage
//
//	reg := asset.NewRegistry()
//	if err := assets.Register(reg, host); err != nil {
//		return err
//	}
//	assets.RegisterProcessors(bank, logger)
package assets
