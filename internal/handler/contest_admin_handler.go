package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/service"
	"github.com/noah-isme/arena-go/internal/utils"
)

// ContestAdminHandler lets staff switch contests on and off.
type ContestAdminHandler struct {
	service service.ContestService
	logger  zerolog.Logger
}

// NewContestAdminHandler constructs the handler.
func NewContestAdminHandler(service service.ContestService, logger zerolog.Logger) *ContestAdminHandler {
	return &ContestAdminHandler{
		service: service,
		logger:  logger.With().Str("component", "contest_admin_handler").Logger(),
	}
}

// Register wires the admin contest routes.
func (h *ContestAdminHandler) Register(router fiber.Router) {
	router.Get("/stats", h.stats)
	router.Put("/:id/activate", h.activate)
	router.Put("/:id/deactivate", h.deactivate)
	router.Delete("/:id", h.delete)
}

func (h *ContestAdminHandler) stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(withRequestContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest stats", stats)
}

func (h *ContestAdminHandler) activate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	contest, err := h.service.Activate(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest activated", contest)
}

func (h *ContestAdminHandler) deactivate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	contest, err := h.service.Deactivate(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest deactivated", contest)
}

func (h *ContestAdminHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(withRequestContext(c), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest deleted", nil)
}

func (h *ContestAdminHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrContestNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("contest administration failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
