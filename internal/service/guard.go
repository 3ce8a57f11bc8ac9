package service

import (
	"fmt"

	"github.com/spec-kit/tastyhub-service/internal/domain"
	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

// RequireOnboardingStep is the precondition run before every gated
// onboarding operation: the caller must be exactly at the declared
// step. It never mutates the account and must execute before any side
// effect of the operation it guards.
func RequireOnboardingStep(user *domain.User, required domain.OnboardingState) error {
	if user.OnboardingState == domain.OnboardingCompleted {
		return apperrors.NewForbidden("onboarding already completed")
	}
	if user.OnboardingState != required {
		return apperrors.NewForbidden(fmt.Sprintf("access denied: user is not in %s", required))
	}
	return nil
}
