package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mrfansi/slacky/internal/chat"
)

// AddReactionRequest represents add reaction request body
type AddReactionRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

// AddReaction attaches an emoji reaction to a message
func (h *Handler) AddReaction(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	messageID := c.Params("messageId")

	var req AddReactionRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, "Emoji is required")
	}

	reaction, err := h.Reactions.Add(c.Context(), userID, messageID, req.Emoji)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    reaction,
	})
}

// RemoveReaction removes the caller's reaction from a message
func (h *Handler) RemoveReaction(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	messageID := c.Params("messageId")
	emoji := c.Query("emoji")
	if emoji == "" {
		return badRequest(c, "Emoji is required")
	}

	if err := h.Reactions.Remove(c.Context(), userID, messageID, emoji); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Reaction removed",
	})
}

// GetReactions returns a message's reactions grouped per emoji
func (h *Handler) GetReactions(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	messageID := c.Params("messageId")

	reactions, err := h.Reactions.List(c.Context(), userID, messageID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    chat.GroupReactions(reactions, userID),
	})
}
