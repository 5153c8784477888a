package artifacts

import (
	"errors"
	"strconv"

	"asset-bank/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler serves the module archive over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the archive routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/modules")
	group.Get("/:name", h.HandleVersions)
	group.Post("/:name/prune", h.HandlePrune)
}

// HandleVersions lists the archived builds of a module.
func (h *Handler) HandleVersions(c *fiber.Ctx) error {
	name := c.Params("name")
	versions, err := h.service.Versions(c.Context(), name)
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing archived modules failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if versions == nil {
		versions = []Version{}
	}
	return c.JSON(fiber.Map{"module": name, "versions": versions})
}

// HandlePrune drops old builds of a module.
func (h *Handler) HandlePrune(c *fiber.Ctx) error {
	keep := 5
	if raw := c.Query("keep"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "keep must be a positive integer"})
		}
		keep = n
	}

	name := c.Params("name")
	removed, err := h.service.Prune(c.Context(), name, keep)
	if err != nil && !errors.Is(err, ErrNoArchive) {
		logger.WithRayID(h.service.logger, c).Error("Pruning archived modules failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   err.Error(),
			"removed": removed,
		})
	}
	return c.JSON(fiber.Map{"module": name, "removed": removed, "kept": keep})
}
