package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mrfansi/slacky/internal/models"
	"github.com/mrfansi/slacky/internal/store"
	"github.com/mrfansi/slacky/internal/utils"
)

// RegisterRequest represents registration request body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles user registration
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, "Email, password, and name are required")
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return h.respondError(c, err)
	}

	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hashedPassword,
	}
	if err := h.Store.CreateUser(c.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"error":   "Email already registered",
			})
		}
		return h.respondError(c, err)
	}

	if err := h.setTokenCookie(c, &user); err != nil {
		return h.respondError(c, err)
	}

	h.Log.Info().Str("user_id", user.ID).Msg("user registered")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    user.ToResponse(),
	})
}

// Login handles email/password login
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, "Email and password are required")
	}

	user, err := h.Store.GetUserByEmail(c.Context(), req.Email)
	if err != nil || !utils.CheckPassword(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid email or password",
		})
	}

	if err := h.setTokenCookie(c, user); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    user.ToResponse(),
	})
}

// Logout clears the token cookie
func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}

// Me returns the authenticated user
func (h *Handler) Me(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	user, err := h.Store.GetUserByID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "User not found",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    user.ToResponse(),
	})
}

func (h *Handler) setTokenCookie(c *fiber.Ctx, user *models.User) error {
	token, err := utils.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return nil
}
