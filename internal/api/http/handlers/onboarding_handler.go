package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tastyhub-service/internal/api/dto"
	"github.com/spec-kit/tastyhub-service/internal/auth"
	"github.com/spec-kit/tastyhub-service/internal/service"
	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

// OnboardingHandler exposes the gated onboarding steps.
type OnboardingHandler struct {
	onboarding *service.OnboardingService
}

// NewOnboardingHandler constructs handler.
func NewOnboardingHandler(onboardingService *service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboardingService}
}

// UpdateProfile handles PATCH /onboarding/profile. The body is a
// multipart form with an optional "file" part carrying the picture.
func (h *OnboardingHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid form payload")
	}
	if strings.TrimSpace(req.Username) == "" {
		return apperrors.NewValidationError("username is required", nil)
	}

	input := service.ProfileInput{
		Username:          req.Username,
		Bio:               req.Bio,
		ProfilePictureAlt: req.ProfilePictureAlt,
	}
	if strings.TrimSpace(req.DateOfBirth) != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return apperrors.NewValidationError("date_of_birth must be formatted as YYYY-MM-DD", nil)
		}
		input.DateOfBirth = &dob
	}

	var file *service.ProfileFile
	if header, err := c.FormFile("file"); err == nil && header != nil {
		src, err := header.Open()
		if err != nil {
			return apperrors.NewBadRequest("could not read uploaded file")
		}
		defer src.Close()
		file = &service.ProfileFile{Name: header.Filename, Reader: src}
	}

	progress, err := h.onboarding.UpdateProfile(c.UserContext(), user, input, file)
	if err != nil {
		return err
	}
	return c.JSON(progressEnvelope(progress))
}

// SelectInterests handles POST /onboarding/interests.
func (h *OnboardingHandler) SelectInterests(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}

	shouldSkip := c.QueryBool("shouldSkip", false)
	var req dto.SelectInterestsRequest
	if !shouldSkip {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewBadRequest("invalid payload")
		}
	}

	progress, err := h.onboarding.SelectInterests(c.UserContext(), user, service.InterestsInput{
		TagIDs:         req.TagIDs,
		NewTags:        req.NewTags,
		UnfollowTagIDs: req.UnfollowTagIDs,
	}, shouldSkip)
	if err != nil {
		return err
	}
	return c.JSON(progressEnvelope(progress))
}

// FollowUsers handles POST /onboarding/connections.
func (h *OnboardingHandler) FollowUsers(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}

	shouldSkip := c.QueryBool("shouldSkip", false)
	var req dto.FollowUsersRequest
	if !shouldSkip {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewBadRequest("invalid payload")
		}
	}

	progress, err := h.onboarding.FollowInitialUsers(c.UserContext(), user, service.ConnectionsInput{
		UserIDs: req.UserIDs,
	}, shouldSkip)
	if err != nil {
		return err
	}
	return c.JSON(progressEnvelope(progress))
}

// GoBack handles PATCH /onboarding/back.
func (h *OnboardingHandler) GoBack(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}

	progress, err := h.onboarding.RevertToPreviousStep(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(progressEnvelope(progress))
}

// CurrentStep handles GET /onboarding/step.
func (h *OnboardingHandler) CurrentStep(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(progressEnvelope(h.onboarding.GetCurrentStep(user)))
}

func progressEnvelope(p service.Progress) fiber.Map {
	return fiber.Map{
		"data": dto.ProgressResponse{
			CurrentStatus: p.CurrentState,
			NextStep:      p.NextState,
			Completed:     p.Completed,
		},
	}
}
