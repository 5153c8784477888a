package catalog

import (
	"errors"

	"asset-bank/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler serves the mirror over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the catalog routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/catalog")
	group.Get("/", h.HandleList)
	group.Get("/:guid", h.HandleFind)
}

// HandleList lists mirrored entries filtered by kind and name prefix.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	entries, err := h.service.List(c.Context(), c.Query("kind"), c.Query("prefix"))
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing catalog failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if entries == nil {
		entries = []Entry{}
	}
	return c.JSON(fiber.Map{"count": len(entries), "entries": entries})
}

// HandleFind returns one mirrored entry.
func (h *Handler) HandleFind(c *fiber.Ctx) error {
	entry, err := h.service.Find(c.Context(), c.Params("guid"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "asset not found"})
	}
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Catalog lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entry)
}
