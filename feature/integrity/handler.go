package integrity

import (
	"errors"

	"asset-bank/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/assets", h.HandleAssetCheck)
	group.Get("/catalog", h.HandleCatalogCheck)
}

// HandleIntegrityCheck runs every check and reports each one separately.
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.Context()
	report := make(map[string]any)

	if plan, err := h.service.CheckAssets(ctx); err != nil {
		report["assets"] = fiber.Map{"status": "error", "error": err.Error()}
	} else {
		report["assets"] = fiber.Map{"status": "ok", "summary": plan.Summary}
	}

	report["catalog"] = catalogReport(h.service.CheckCatalog(ctx))

	return c.JSON(report)
}

// HandleAssetCheck reconciles the bank with the disk. With fix=true the drift
// is repaired unless dry_run=true.
func (h *Handler) HandleAssetCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	if !c.QueryBool("fix") {
		plan, err := h.service.CheckAssets(c.Context())
		if err != nil {
			l.Error("Asset integrity check failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(plan)
	}

	report, err := h.service.FixAssets(c.Context(), c.QueryBool("dry_run"))
	if err != nil {
		l.Error("Asset repair failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleCatalogCheck validates the catalog schema.
func (h *Handler) HandleCatalogCheck(c *fiber.Ctx) error {
	err := h.service.CheckCatalog(c.Context())
	if err != nil && !errors.Is(err, ErrNoCatalog) {
		logger.WithRayID(h.service.logger, c).Warn("Catalog schema check failed", zap.Error(err))
	}
	return c.JSON(catalogReport(err))
}

func catalogReport(err error) fiber.Map {
	switch {
	case err == nil:
		return fiber.Map{"status": "ok"}
	case errors.Is(err, ErrNoCatalog):
		return fiber.Map{"status": "skipped"}
	default:
		return fiber.Map{"status": "error", "error": err.Error()}
	}
}
