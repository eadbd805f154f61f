package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// SendMessageRequest represents send message request body
type SendMessageRequest struct {
	Content string  `json:"content" validate:"required"`
	Image   *string `json:"image,omitempty"`
}

// SendMessage sends a top-level message into a conversation
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	conversationID := c.Params("conversationId")

	var req SendMessageRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, "Message cannot be empty")
	}

	message, err := h.Pipeline.Send(c.Context(), userID, conversationID, req.Content, req.Image)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    message,
	})
}

// GetMessages returns the conversation's top-level messages. Reading has
// side effects: messages are marked seen and the caller's unread flag is
// cleared.
func (h *Handler) GetMessages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	conversationID := c.Params("conversationId")

	messages, err := h.Pipeline.GetMessages(c.Context(), userID, conversationID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    messages,
	})
}
