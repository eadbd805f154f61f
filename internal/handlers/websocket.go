package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	ws "github.com/mrfansi/slacky/internal/websocket"
)

// WebSocketUpgrade gates the websocket route behind an upgrade check
func (h *Handler) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocket handles a websocket connection for the authenticated user
func (h *Handler) WebSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(string)
		if !ok || userID == "" {
			conn.Close()
			return
		}

		client := ws.NewClient(userID, conn, h.Hub)
		h.Hub.Register <- client

		go client.WritePump()
		client.ReadPump()
	})
}

// OnlineUsers reports who is currently connected
func (h *Handler) OnlineUsers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"userIds": h.Presence.OnlineUsers(),
			"count":   h.Hub.OnlineCount(),
		},
	})
}
