package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tastyhub-service/internal/api/http/handlers"
	"github.com/spec-kit/tastyhub-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Onboarding     *handlers.OnboardingHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/verify", cfg.Auth.VerifyEmail)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	onboarding := app.Group("/onboarding", cfg.AuthMiddleware.Handle, auth.RequireVerified())
	onboarding.Get("/step", cfg.Onboarding.CurrentStep)
	onboarding.Patch("/profile", cfg.Onboarding.UpdateProfile)
	onboarding.Post("/interests", cfg.Onboarding.SelectInterests)
	onboarding.Post("/connections", cfg.Onboarding.FollowUsers)
	onboarding.Patch("/back", cfg.Onboarding.GoBack)
}
