package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tastyhub-service/internal/domain"
	"github.com/spec-kit/tastyhub-service/internal/repository"
	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and loads the account.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if user.Status == domain.UserStatusDisabled {
		return apperrors.NewUnauthorized("account disabled")
	}

	c.Locals(principalKey, user)
	return c.Next()
}

// CurrentUser resolves the authenticated account, failing with
// Unauthorized when none is bound to the request.
func CurrentUser(c *fiber.Ctx) (*domain.User, error) {
	user, ok := c.Locals(principalKey).(*domain.User)
	if !ok || user == nil {
		return nil, apperrors.NewUnauthorized("user not authenticated")
	}
	return user, nil
}
