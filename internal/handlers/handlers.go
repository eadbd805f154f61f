package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mrfansi/slacky/internal/chat"
	"github.com/mrfansi/slacky/internal/presence"
	"github.com/mrfansi/slacky/internal/store"
	ws "github.com/mrfansi/slacky/internal/websocket"
)

// Handler carries the wired services behind the HTTP surface
type Handler struct {
	Store     store.Store
	Directory *chat.Directory
	Pipeline  *chat.Pipeline
	Threads   *chat.Threads
	Reactions *chat.Reactions
	Hub       *ws.Hub
	Presence  *presence.Tracker
	Log       zerolog.Logger

	validate *validator.Validate
}

// New creates the handler set
func New(st store.Store, directory *chat.Directory, pipeline *chat.Pipeline,
	threads *chat.Threads, reactions *chat.Reactions, hub *ws.Hub,
	tracker *presence.Tracker, logger zerolog.Logger) *Handler {
	return &Handler{
		Store:     st,
		Directory: directory,
		Pipeline:  pipeline,
		Threads:   threads,
		Reactions: reactions,
		Hub:       hub,
		Presence:  tracker,
		Log:       logger,
		validate:  validator.New(),
	}
}

// respondError maps the chat error taxonomy onto HTTP statuses. Core
// operations return results instead of raising through this boundary;
// failures are logged here and surfaced as a short user-facing message.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, chat.ErrUnauthenticated):
		status = fiber.StatusUnauthorized
	case errors.Is(err, chat.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, chat.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, chat.ErrConflict):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		h.Log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   "Internal server error",
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

// parseBody decodes and validates a request body
func (h *Handler) parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errors.New("invalid request body")
	}
	if err := h.validate.Struct(out); err != nil {
		return err
	}
	return nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
