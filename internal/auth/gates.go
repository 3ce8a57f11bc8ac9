package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

// RequireVerified rejects callers that have not confirmed their email
// address yet.
func RequireVerified() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}
		if !user.IsVerified() {
			return apperrors.NewUnauthorized("account not verified; please check your email")
		}
		return c.Next()
	}
}
