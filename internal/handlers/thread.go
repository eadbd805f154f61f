package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// ThreadReplyRequest represents thread reply request body
type ThreadReplyRequest struct {
	Content string `json:"content" validate:"required"`
}

// GetThread returns a parent message and its replies in posting order
func (h *Handler) GetThread(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	messageID := c.Params("messageId")

	parent, replies, err := h.Threads.GetThread(c.Context(), userID, messageID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"message": parent,
			"replies": replies,
		},
	})
}

// PostReply posts a reply into a message's thread
func (h *Handler) PostReply(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	messageID := c.Params("messageId")

	var req ThreadReplyRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, "Reply cannot be empty")
	}

	reply, replyCount, err := h.Threads.PostReply(c.Context(), userID, messageID, req.Content)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"message":    reply,
			"replyCount": replyCount,
		},
	})
}
