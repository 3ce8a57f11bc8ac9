package dto

import (
	"time"

	"github.com/spec-kit/tastyhub-service/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// VerifyEmailRequest payload.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest payload for token rotation and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// UserResponse describes an account in API responses.
type UserResponse struct {
	ID              int64                  `json:"id"`
	FirstName       string                 `json:"first_name"`
	LastName        string                 `json:"last_name"`
	Email           string                 `json:"email"`
	Username        string                 `json:"username"`
	Status          domain.UserStatus      `json:"status"`
	OnboardingState domain.OnboardingState `json:"onboarding_state"`
}

// NewUserResponse maps a user aggregate into its API shape.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:              user.ID,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Email:           user.Email,
		Username:        user.Username,
		Status:          user.Status,
		OnboardingState: user.OnboardingState,
	}
}
