package domain

// OnboardingState enumerates the stages a new account moves through
// between signup and full activation.
type OnboardingState string

const (
	OnboardingPendingVerification OnboardingState = "PENDING_VERIFICATION"
	OnboardingStep1               OnboardingState = "STEP_1"
	OnboardingStep2               OnboardingState = "STEP_2"
	OnboardingStep3               OnboardingState = "STEP_3"
	OnboardingCompleted           OnboardingState = "COMPLETED"
)

// onboardingSequence fixes the declaration order used by Next.
var onboardingSequence = []OnboardingState{
	OnboardingPendingVerification,
	OnboardingStep1,
	OnboardingStep2,
	OnboardingStep3,
	OnboardingCompleted,
}

// Next returns the following state in the sequence. COMPLETED maps to
// itself.
func (s OnboardingState) Next() OnboardingState {
	for i, state := range onboardingSequence {
		if state != s {
			continue
		}
		if i+1 >= len(onboardingSequence) {
			return s
		}
		return onboardingSequence[i+1]
	}
	return s
}

// IsInProgress reports whether the state is one of the three active
// onboarding steps.
func (s OnboardingState) IsInProgress() bool {
	return s == OnboardingStep1 || s == OnboardingStep2 || s == OnboardingStep3
}

// Previous returns the single supported backward transition. It reports
// false when no predecessor exists: the first step, the unverified
// state, and a finished onboarding cannot be reverted.
func (s OnboardingState) Previous() (OnboardingState, bool) {
	switch s {
	case OnboardingStep3:
		return OnboardingStep2, true
	case OnboardingStep2:
		return OnboardingStep1, true
	default:
		return s, false
	}
}
