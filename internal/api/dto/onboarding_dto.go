package dto

import "github.com/spec-kit/tastyhub-service/internal/domain"

// UpdateProfileRequest captures the multipart form fields of the
// profile step. The picture itself travels as the "file" part.
type UpdateProfileRequest struct {
	Username          string `form:"username"`
	Bio               string `form:"bio"`
	ProfilePictureAlt string `form:"profile_picture_alt"`
	DateOfBirth       string `form:"date_of_birth"`
}

// SelectInterestsRequest payload for the interests step.
type SelectInterestsRequest struct {
	TagIDs         []int64  `json:"tag_ids"`
	NewTags        []string `json:"new_tags"`
	UnfollowTagIDs []int64  `json:"unfollow_tag_ids"`
}

// FollowUsersRequest payload for the connections step.
type FollowUsersRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

// ProgressResponse reports where the account stands in onboarding.
type ProgressResponse struct {
	CurrentStatus domain.OnboardingState `json:"current_status"`
	NextStep      domain.OnboardingState `json:"next_step"`
	Completed     bool                   `json:"completed"`
}
