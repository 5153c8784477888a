package assets

import (
	"image"
	"os"

	"asset-bank/core/asset"
	"asset-bank/core/filebank"

	"go.uber.org/zap"
)

// Dimensions is stored in the UserData of texture entries by the texture
// processor.
type Dimensions struct {
	Width  int
	Height int
	Format string
}

// TextureProcessor records the dimensions of new and changed textures without
// decoding the pixels.
type TextureProcessor struct {
	logger *zap.Logger
}

// NewTextureProcessor creates the processor.
func NewTextureProcessor(logger *zap.Logger) *TextureProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextureProcessor{logger: logger}
}

// Changed implements filebank.Processor.
func (p *TextureProcessor) Changed(b *filebank.Bank, guid asset.Guid, name, path string) {
	e := b.Entry(guid)
	if e == nil {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		p.logger.Warn("Texture vanished before processing", zap.String("name", name), zap.Error(err))
		return
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		p.logger.Warn("Unreadable texture header", zap.String("name", name), zap.Error(err))
		e.UserData = nil
		return
	}
	e.UserData = Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}
	p.logger.Debug("Texture processed",
		zap.String("name", name),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))
}

// RegisterProcessors installs the built-in processors on b.
func RegisterProcessors(b *filebank.Bank, logger *zap.Logger) {
	b.RegisterProcessor(asset.KindTexture, NewTextureProcessor(logger))
}
