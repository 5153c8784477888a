package assets

import (
	"fmt"
	"image"
	"io"

	"asset-bank/core/asset"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Texture is a decoded image.
type Texture struct {
	base
	Image  image.Image
	Format string
	// Filter is the sampling mode requested by the sidecar.
	Filter string
	SRGB   bool
}

// Width returns the image width in pixels.
func (t *Texture) Width() int { return t.Image.Bounds().Dx() }

// Height returns the image height in pixels.
func (t *Texture) Height() int { return t.Image.Bounds().Dy() }

// LoadTexture decodes any registered image format.
func LoadTexture(r io.Reader, meta asset.Metadata) (asset.Asset, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode texture: %w", err)
	}
	return &Texture{
		Image:  img,
		Format: format,
		Filter: meta.String("filter", "linear"),
		SRGB:   meta.Bool("srgb", true),
	}, nil
}
