package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mrfansi/slacky/internal/handlers"
	"github.com/mrfansi/slacky/internal/middleware"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h *handlers.Handler) {
	// API v1 group
	api := app.Group("/api/v1")

	// Health check (public)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Slacky API is running",
		})
	})

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/register", middleware.StrictRateLimiter(), h.Register)
	auth.Post("/login", middleware.StrictRateLimiter(), h.Login)
	auth.Post("/logout", middleware.AuthMiddleware, h.Logout)
	auth.Get("/me", middleware.AuthMiddleware, h.Me)

	// User directory (protected)
	users := api.Group("/users", middleware.AuthMiddleware)
	users.Get("/", h.GetUsers)

	// Conversation routes (protected)
	conversations := api.Group("/conversations", middleware.AuthMiddleware)
	conversations.Get("/", h.GetConversations)
	conversations.Post("/group", middleware.ModerateRateLimiter(), h.CreateGroup)
	conversations.Post("/direct", middleware.ModerateRateLimiter(), h.GetOrCreateDirect)
	conversations.Post("/:conversationId/members", h.AddMember)
	conversations.Delete("/:conversationId/members/:userId", h.RemoveMember)
	conversations.Get("/:conversationId/messages", h.GetMessages)
	conversations.Post("/:conversationId/messages", h.SendMessage)

	// Message routes (protected)
	messages := api.Group("/messages", middleware.AuthMiddleware)
	messages.Get("/:messageId/thread", h.GetThread)
	messages.Post("/:messageId/thread", h.PostReply)
	messages.Get("/:messageId/reactions", h.GetReactions)
	messages.Post("/:messageId/reactions", h.AddReaction)
	messages.Delete("/:messageId/reactions", h.RemoveReaction)

	// WebSocket route (protected)
	api.Get("/ws", middleware.AuthMiddleware, h.WebSocketUpgrade, h.WebSocket())

	// Online users (protected, for debugging)
	api.Get("/ws/online", middleware.AuthMiddleware, h.OnlineUsers)
}
