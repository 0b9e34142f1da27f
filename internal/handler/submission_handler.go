package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/service"
	"github.com/noah-isme/arena-go/internal/utils"
)

// SubmissionHandler exposes the judge endpoints of the contest API.
type SubmissionHandler struct {
	service   service.SubmissionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service service.SubmissionService, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the submission routes. runLimiter guards the judge endpoints
// and may be nil.
func (h *SubmissionHandler) Register(router fiber.Router, runLimiter fiber.Handler) {
	if runLimiter == nil {
		runLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	router.Post("/test", runLimiter, h.test)
	router.Post("/", runLimiter, h.submit)
	router.Get("/user", h.history)
	router.Get("/user/:problemId", h.latest)
}

func (h *SubmissionHandler) test(c *fiber.Ctx) error {
	return h.run(c, h.service.Test, "code tested")
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	return h.run(c, h.service.Submit, "submission stored")
}

func (h *SubmissionHandler) run(c *fiber.Ctx, judge func(context.Context, uint, dto.SubmissionRequest) (dto.SubmissionResponse, error), message string) error {
	var payload dto.SubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	verdict, err := judge(withRequestContext(c), userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, message, verdict)
}

func (h *SubmissionHandler) history(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	submissions, err := h.service.History(withRequestContext(c), userID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) latest(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	problemID, err := parseUintParam(c, "problemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Latest(withRequestContext(c), userID, problemID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, "language not supported")
	case errors.Is(err, service.ErrProblemNotFound), errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrContestClosed):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.As(err, &validationErrors):
		return utils.ValidationFailed(c, err)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("submission operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
