package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/service"
	"github.com/noah-isme/arena-go/internal/session"
	"github.com/noah-isme/arena-go/internal/utils"
)

const defaultKeepAlive = 30 * time.Second

// SessionHandler exposes problem-solving sessions over REST, a snapshot
// websocket and a server-sent event stream of session events.
type SessionHandler struct {
	sessions  service.SessionService
	events    service.SessionEvents
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewSessionHandler constructs the handler. events may be nil, which disables
// the event stream.
func NewSessionHandler(sessions service.SessionService, events service.SessionEvents, logger zerolog.Logger, keepAlive time.Duration) *SessionHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &SessionHandler{
		sessions:  sessions,
		events:    events,
		logger:    logger.With().Str("component", "session_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Get("/events", h.stream)
	router.Post("/", h.open)
	router.Get("/:id/ws", h.upgrade, websocket.New(h.watch))
	router.Get("/:id", h.get)
	router.Put("/:id/code", h.setCode)
	router.Put("/:id/language", h.setLanguage)
	router.Post("/:id/test", h.test)
	router.Post("/:id/submit", h.submit)
	router.Post("/:id/next", h.next)
	router.Post("/:id/prev", h.prev)
	router.Post("/:id/reload", h.reload)
	router.Delete("/:id", h.close)
}

func (h *SessionHandler) open(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var payload dto.SessionOpenRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.sessions.Open(withRequestContext(c), userID, accessTokenFromContext(c), payload)
	if err != nil {
		return h.handleError(c, resp, "open", err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session opened", resp)
}

func (h *SessionHandler) get(c *fiber.Ctx) error {
	resp, err := h.sessions.Get(withRequestContext(c), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, resp, "get", err)
	}
	return utils.SendSuccess(c, "session retrieved", resp)
}

func (h *SessionHandler) setCode(c *fiber.Ctx) error {
	var payload dto.SessionCodeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.sessions.SetCode(withRequestContext(c), userIDFromContext(c), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, resp, "code", err)
	}
	return utils.SendSuccess(c, "code updated", resp)
}

func (h *SessionHandler) setLanguage(c *fiber.Ctx) error {
	var payload dto.SessionLanguageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.sessions.SetLanguage(withRequestContext(c), userIDFromContext(c), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, resp, "language", err)
	}
	return utils.SendSuccess(c, "language updated", resp)
}

func (h *SessionHandler) test(c *fiber.Ctx) error {
	resp, err := h.sessions.Test(withRequestContext(c), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, resp, "test", err)
	}
	return utils.SendSuccess(c, "code tested", resp)
}

func (h *SessionHandler) submit(c *fiber.Ctx) error {
	resp, err := h.sessions.Submit(withRequestContext(c), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, resp, "submit", err)
	}
	return utils.SendSuccess(c, "code submitted", resp)
}

func (h *SessionHandler) next(c *fiber.Ctx) error {
	resp, err := h.sessions.Next(withRequestContext(c), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, resp, "next", err)
	}
	return utils.SendSuccess(c, "moved to next problem", resp)
}

func (h *SessionHandler) prev(c *fiber.Ctx) error {
	resp, err := h.sessions.Prev(withRequestContext(c), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, resp, "prev", err)
	}
	return utils.SendSuccess(c, "moved to previous problem", resp)
}

func (h *SessionHandler) reload(c *fiber.Ctx) error {
	resp, err := h.sessions.Reload(withRequestContext(c), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, resp, "reload", err)
	}
	return utils.SendSuccess(c, "session reloaded", resp)
}

func (h *SessionHandler) close(c *fiber.Ctx) error {
	if err := h.sessions.Close(withRequestContext(c), userIDFromContext(c), c.Params("id")); err != nil {
		return h.handleError(c, dto.SessionResponse{}, "close", err)
	}
	return utils.SendSuccess(c, "session closed", nil)
}

// upgrade checks ownership before the websocket handshake so a missing
// session is reported as a plain 404.
func (h *SessionHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	userID := userIDFromContext(c)
	if _, err := h.sessions.Get(withRequestContext(c), userID, c.Params("id")); err != nil {
		return h.handleError(c, dto.SessionResponse{}, "watch", err)
	}
	c.Locals("session_user_id", userID)
	return c.Next()
}

func (h *SessionHandler) watch(conn *websocket.Conn) {
	userID, _ := conn.Locals("session_user_id").(uint)
	sessionID := conn.Params("id")
	logger := h.logger.With().Str("session_id", sessionID).Uint("user_id", userID).Logger()

	snapshots, cleanup, err := h.sessions.Watch(userID, sessionID)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		_ = conn.Close()
		return
	}
	defer cleanup()

	logger.Info().Msg("session websocket connected")
	defer logger.Info().Msg("session websocket disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.keepAlive / 2)
	defer ping.Stop()

	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				logger.Debug().Err(err).Msg("failed to write session snapshot")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *SessionHandler) stream(c *fiber.Ctx) error {
	if h.events == nil {
		return utils.SendError(c, fiber.StatusNotFound, "event stream disabled")
	}
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events, cleanup := h.events.Subscribe(userID)
	keepAlive := h.keepAlive

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cleanup()

		ticker := time.NewTicker(keepAlive / 2)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeSessionEvent(w, event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write session event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func (h *SessionHandler) handleError(c *fiber.Ctx, resp dto.SessionResponse, action string, err error) error {
	var clamp *session.ClampError
	switch {
	case errors.As(err, &clamp):
		message := resp.Banner
		if message == "" {
			message = clamp.Error()
		}
		return utils.Fail(c, fiber.StatusConflict, message, dto.SessionRefusalDetails{
			Action:   clamp.Action,
			Reason:   string(clamp.Reason),
			Redirect: clamp.Redirect,
			Session:  resp,
		})
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case isValidationError(err):
		return utils.ValidationFailed(c, err)
	case errors.Is(err, session.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrDispatchInFlight),
		errors.Is(err, session.ErrNoProblem),
		errors.Is(err, session.ErrNavigationUnavailable):
		return utils.Fail(c, fiber.StatusConflict, err.Error(), resp)
	default:
		requestLogger(h.logger, c).Warn().Err(err).Str("action", action).Msg("session action failed")
		if resp.ID != "" {
			return utils.Fail(c, fiber.StatusBadGateway, err.Error(), resp)
		}
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func writeSessionEvent(w *bufio.Writer, event dto.SessionEventResponse) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Kind); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
