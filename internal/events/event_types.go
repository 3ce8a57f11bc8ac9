package events

import (
	"time"

	"github.com/spec-kit/tastyhub-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered          EventType = "user_registered"
	EventUserVerified            EventType = "user_verified"
	EventOnboardingStepCompleted EventType = "onboarding_step_completed"
	EventOnboardingCompleted     EventType = "onboarding_completed"
	EventOnboardingReverted      EventType = "onboarding_reverted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token"`
}

// StepCompletedPayload payload.
type StepCompletedPayload struct {
	Step     domain.OnboardingState `json:"step"`
	NewState domain.OnboardingState `json:"new_state"`
}

// OnboardingCompletedPayload payload.
type OnboardingCompletedPayload struct {
	Email       string    `json:"email"`
	CompletedAt time.Time `json:"completed_at"`
}

// OnboardingRevertedPayload payload.
type OnboardingRevertedPayload struct {
	From domain.OnboardingState `json:"from"`
	To   domain.OnboardingState `json:"to"`
}
