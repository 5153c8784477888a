package editor

import (
	"errors"
	"strconv"

	"asset-bank/core/asset"
	"asset-bank/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler serves the editor API.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the editor routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/status", h.HandleStatus)
	app.Get("/assets", h.HandleList)
	app.Get("/assets/:guid", h.HandleGet)
	app.Post("/reload", h.HandleReload)
	app.Post("/watch/start", h.HandleWatch(true))
	app.Post("/watch/stop", h.HandleWatch(false))
}

// HandleStatus reports the project state.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	st, err := h.service.Status(c.Context())
	if err != nil {
		return h.fail(c, "Reading status failed", err)
	}
	return c.JSON(st)
}

// HandleList lists tracked entries.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	assets, err := h.service.List(c.Context(), c.Query("kind"), c.Query("prefix"))
	if errors.Is(err, ErrInvalidKind) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return h.fail(c, "Listing assets failed", err)
	}
	return c.JSON(fiber.Map{"count": len(assets), "assets": assets})
}

// HandleGet returns one entry.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	a, err := h.service.Get(c.Context(), c.Params("guid"), c.QueryBool("load"))
	switch {
	case errors.Is(err, asset.ErrInvalidGuid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, asset.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return h.fail(c, "Reading asset failed", err)
	}
	return c.JSON(a)
}

// HandleReload runs a reload. full=true rescans the whole tree.
func (h *Handler) HandleReload(c *fiber.Ctx) error {
	full := false
	if raw := c.Query("full"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "full must be a boolean"})
		}
		full = v
	}

	res, err := h.service.Reload(c.Context(), full)
	if err != nil {
		return h.fail(c, "Reload failed", err)
	}
	return c.JSON(fiber.Map{
		"build_started":  res.BuildStarted,
		"build_finished": res.BuildFinished,
		"build_failed":   res.BuildFailed,
		"swapped":        res.Swapped,
		"invalidated":    res.Invalidated,
		"module_version": res.ModuleVersion,
		"synced":         res.Synced,
		"full":           res.Stats.Full,
		"added":          res.Stats.Added,
		"updated":        res.Stats.Updated,
		"removed":        res.Stats.Removed,
	})
}

// HandleWatch returns a handler toggling the watchers.
func (h *Handler) HandleWatch(on bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := h.service.SetWatching(c.Context(), on); err != nil {
			return h.fail(c, "Toggling watchers failed", err)
		}
		return c.JSON(fiber.Map{"watching": on})
	}
}

func (h *Handler) fail(c *fiber.Ctx, msg string, err error) error {
	logger.WithRayID(h.service.logger, c).Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
