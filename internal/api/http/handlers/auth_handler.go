package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tastyhub-service/internal/api/dto"
	"github.com/spec-kit/tastyhub-service/internal/service"
	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

// AuthHandler exposes signup, verification and session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.FirstName) == "" {
		return apperrors.NewValidationError("first_name, email and password are required", nil)
	}
	if len(req.Password) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	user, _, err := h.auth.Signup(c.UserContext(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user":    dto.NewUserResponse(user),
			"message": "verification email sent",
		},
	})
}

// VerifyEmail handles POST /auth/verify.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if strings.TrimSpace(req.Token) == "" {
		return apperrors.NewValidationError("token is required", nil)
	}

	result, err := h.auth.VerifyEmail(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(authEnvelope(result))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(authEnvelope(result))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return apperrors.NewValidationError("refresh_token is required", nil)
	}

	result, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(authEnvelope(result))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if err := h.auth.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func authEnvelope(result *service.AuthResult) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(result.User),
			"auth": dto.AuthResponse{
				AccessToken:  result.AccessToken,
				ExpiresAt:    result.ExpiresAt,
				RefreshToken: result.RefreshToken,
			},
		},
	}
}
