package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// CreateGroupRequest represents create group request body
type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required"`
	MemberIDs []string `json:"memberIds" validate:"required,min=1"`
}

// DirectConversationRequest targets the other user of a private conversation
type DirectConversationRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// AddMemberRequest represents add member request body
type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// GetConversations returns the caller's conversation directory
func (h *Handler) GetConversations(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	conversations, err := h.Directory.ListConversations(c.Context(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    conversations,
	})
}

// GetUsers returns everyone except the caller
func (h *Handler) GetUsers(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	users, err := h.Directory.GetUsers(c.Context(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
	})
}

// CreateGroup creates a group conversation
func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	var req CreateGroupRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, "Group name and at least one member are required")
	}

	conversation, err := h.Directory.CreateGroup(c.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    conversation,
	})
}

// GetOrCreateDirect resolves the private conversation with another user
func (h *Handler) GetOrCreateDirect(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	var req DirectConversationRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, "User ID is required")
	}

	conversation, err := h.Directory.GetOrCreatePrivate(c.Context(), userID, req.UserID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    conversation,
	})
}

// AddMember adds a user to a group conversation
func (h *Handler) AddMember(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	conversationID := c.Params("conversationId")

	var req AddMemberRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, "User ID is required")
	}

	if err := h.Directory.AddMember(c.Context(), userID, conversationID, req.UserID); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Member added successfully",
	})
}

// RemoveMember removes a user from a group conversation
func (h *Handler) RemoveMember(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	conversationID := c.Params("conversationId")
	memberID := c.Params("userId")

	if err := h.Directory.RemoveMember(c.Context(), userID, conversationID, memberID); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Member removed successfully",
	})
}
