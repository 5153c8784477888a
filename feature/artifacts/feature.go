package artifacts

import (
	"asset-bank/core/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
	enabled bool
}

// NewFeature creates the module archive feature.
func NewFeature(client storage.Client, bucket string, logger *zap.Logger, enabled bool) *Feature {
	svc := NewService(client, bucket, logger)
	return &Feature{service: svc, handler: NewHandler(svc), enabled: enabled && client != nil}
}

// Service returns the archive service.
func (f *Feature) Service() *Service {
	return f.service
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "artifacts"
}

// IsEnabled reports whether object storage is configured.
func (f *Feature) IsEnabled() bool {
	return f.enabled
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
