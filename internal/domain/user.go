package domain

import (
	"errors"
	"time"
)

// UserStatus represents account-level lifecycle states.
type UserStatus string

const (
	UserStatusPending  UserStatus = "PENDING"
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusDisabled UserStatus = "DISABLED"
)

// User is the account aggregate. Profile fields are mutable during
// onboarding; the onboarding state only moves through the transitions
// defined on OnboardingState.
type User struct {
	ID                    int64
	FirstName             string
	LastName              string
	Email                 string
	Username              string
	Bio                   string
	PasswordHash          string
	DateOfBirth           *time.Time
	ProfilePictureRef     string
	ProfilePictureAlt     string
	Status                UserStatus
	OnboardingState       OnboardingState
	OnboardingStartedAt   *time.Time
	OnboardingCompletedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsVerified is the canonical verification check: the account has left
// the pending-verification state. Account status is not consulted.
func (u *User) IsVerified() bool {
	return u.OnboardingState != OnboardingPendingVerification
}

// IsOnboardingFinished reports whether onboarding reached its terminal
// state.
func (u *User) IsOnboardingFinished() bool {
	return u.OnboardingState == OnboardingCompleted
}

// StartOnboarding moves a freshly verified account into the first step.
func (u *User) StartOnboarding(now time.Time) error {
	if u.OnboardingState != OnboardingPendingVerification {
		return errors.New("cannot start onboarding from current state")
	}
	u.OnboardingState = OnboardingStep1
	u.OnboardingStartedAt = &now
	return nil
}

// CompleteOnboarding finalizes onboarding and activates the account.
func (u *User) CompleteOnboarding(now time.Time) {
	u.OnboardingState = OnboardingCompleted
	u.Status = UserStatusActive
	u.OnboardingCompletedAt = &now
}
