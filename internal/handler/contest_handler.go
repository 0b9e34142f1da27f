package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/service"
	"github.com/noah-isme/arena-go/internal/utils"
)

// ContestHandler serves contests and leaderboards to competitors.
type ContestHandler struct {
	service service.ContestQueryService
	logger  zerolog.Logger
}

// NewContestHandler constructs the handler.
func NewContestHandler(service service.ContestQueryService, logger zerolog.Logger) *ContestHandler {
	return &ContestHandler{
		service: service,
		logger:  logger.With().Str("component", "contest_handler").Logger(),
	}
}

// Register wires the contest routes.
func (h *ContestHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/leaderboard", h.leaderboard)
}

func (h *ContestHandler) list(c *fiber.Ctx) error {
	contests, err := h.service.List(withRequestContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contests retrieved", contests)
}

func (h *ContestHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	contest, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest retrieved", contest)
}

func (h *ContestHandler) leaderboard(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.service.Leaderboard(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "leaderboard retrieved", entries)
}

func (h *ContestHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrContestNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("contest lookup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
