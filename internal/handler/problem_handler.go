package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/service"
	"github.com/noah-isme/arena-go/internal/utils"
)

// ProblemHandler serves problem metadata for the contest API.
type ProblemHandler struct {
	service service.ProblemService
	logger  zerolog.Logger
}

// NewProblemHandler constructs the handler.
func NewProblemHandler(service service.ProblemService, logger zerolog.Logger) *ProblemHandler {
	return &ProblemHandler{
		service: service,
		logger:  logger.With().Str("component", "problem_handler").Logger(),
	}
}

// Register wires the problem routes.
func (h *ProblemHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/contest/:contestId", h.byContest)
	router.Get("/:id", h.get)
	router.Get("/:id/snippets", h.snippets)
	router.Get("/:id/contest-status", h.contestStatus)
}

func (h *ProblemHandler) list(c *fiber.Ctx) error {
	problems, err := h.service.List(withRequestContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "problems retrieved", problems)
}

func (h *ProblemHandler) byContest(c *fiber.Ctx) error {
	contestID, err := parseUintParam(c, "contestId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	problems, err := h.service.ListByContest(withRequestContext(c), contestID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "problems retrieved", problems)
}

func (h *ProblemHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	problem, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "problem retrieved", problem)
}

func (h *ProblemHandler) snippets(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	snippets, err := h.service.Snippets(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "snippets retrieved", snippets)
}

func (h *ProblemHandler) contestStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := h.service.ContestStatus(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "contest status retrieved", status)
}

func (h *ProblemHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProblemNotFound), errors.Is(err, service.ErrContestNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("problem lookup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
