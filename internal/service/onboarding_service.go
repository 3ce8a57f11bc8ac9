package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/tastyhub-service/internal/domain"
	"github.com/spec-kit/tastyhub-service/internal/events"
	"github.com/spec-kit/tastyhub-service/internal/repository"
	"github.com/spec-kit/tastyhub-service/internal/storage"
	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

// TxManager runs a function inside one atomic unit of work. Completion
// hooks registered during the function fire after the outcome is known.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Progress is the triple returned by every onboarding operation.
type Progress struct {
	CurrentState domain.OnboardingState
	NextState    domain.OnboardingState
	Completed    bool
}

// ProfileInput carries the identity step fields.
type ProfileInput struct {
	Username          string
	Bio               string
	ProfilePictureAlt string
	DateOfBirth       *time.Time
}

// ProfileFile is an optional uploaded profile picture.
type ProfileFile struct {
	Name   string
	Reader io.Reader
}

// InterestsInput carries the interests step fields.
type InterestsInput struct {
	TagIDs         []int64
	NewTags        []string
	UnfollowTagIDs []int64
}

// ConnectionsInput carries the connections step fields.
type ConnectionsInput struct {
	UserIDs []int64
}

// OnboardingService drives the multi-step onboarding workflow: one
// business operation per step, each guarded by the step precondition
// and wrapped in a single transaction.
type OnboardingService struct {
	users      repository.UserRepository
	follows    repository.FollowRepository
	tags       *TagService
	images     *storage.ImageStore
	tx         TxManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// OnboardingDependencies bundles collaborators for the service.
type OnboardingDependencies struct {
	UserRepo   repository.UserRepository
	FollowRepo repository.FollowRepository
	Tags       *TagService
	Images     *storage.ImageStore
	Tx         TxManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewOnboardingService constructs the service.
func NewOnboardingService(deps OnboardingDependencies) *OnboardingService {
	return &OnboardingService{
		users:      deps.UserRepo,
		follows:    deps.FollowRepo,
		tags:       deps.Tags,
		images:     deps.Images,
		tx:         deps.Tx,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// UpdateProfile performs the identity step. The caller must be at
// STEP_1. When a file is supplied the new blob replaces the previous
// avatar: the new file is rolled back if the transaction fails, the old
// one is unlinked only after a successful commit.
func (s *OnboardingService) UpdateProfile(ctx context.Context, user *domain.User, input ProfileInput, file *ProfileFile) (Progress, error) {
	if err := RequireOnboardingStep(user, domain.OnboardingStep1); err != nil {
		return Progress{}, err
	}

	ctx, _ = storage.WithCompensation(ctx)
	username := strings.TrimSpace(input.Username)

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.requireStepInTx(ctx, user.ID, domain.OnboardingStep1); err != nil {
			return err
		}

		taken, err := s.users.ExistsByUsernameExcludingID(ctx, username, user.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.NewConflict("username already taken", map[string]any{"username": username})
		}

		if file != nil {
			ref, err := s.images.Store(ctx, file.Name, file.Reader)
			if err != nil {
				return err
			}
			previous := user.ProfilePictureRef
			user.ProfilePictureRef = ref
			user.ProfilePictureAlt = input.ProfilePictureAlt
			if previous != "" {
				// physical unlink deferred to commit time
				s.images.Delete(ctx, previous)
			}
		}

		user.Username = username
		user.Bio = strings.TrimSpace(input.Bio)
		user.DateOfBirth = input.DateOfBirth
		user.OnboardingState = domain.OnboardingStep2

		return s.users.Update(ctx, user)
	})
	if err != nil {
		return Progress{}, err
	}

	s.publishStepCompleted(ctx, user, domain.OnboardingStep1)
	return s.progress(user), nil
}

// SelectInterests performs the interests step. The caller must be at
// STEP_2. Skipping advances without touching the follow set; otherwise
// unfollows are applied first, then new and existing tags are followed
// (set union, order between the two does not matter).
func (s *OnboardingService) SelectInterests(ctx context.Context, user *domain.User, input InterestsInput, shouldSkip bool) (Progress, error) {
	if err := RequireOnboardingStep(user, domain.OnboardingStep2); err != nil {
		return Progress{}, err
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.requireStepInTx(ctx, user.ID, domain.OnboardingStep2); err != nil {
			return err
		}

		if !shouldSkip {
			if err := s.applyInterests(ctx, user, input); err != nil {
				return err
			}
		}
		user.OnboardingState = domain.OnboardingStep3
		return s.users.Update(ctx, user)
	})
	if err != nil {
		return Progress{}, err
	}

	s.publishStepCompleted(ctx, user, domain.OnboardingStep2)
	return s.progress(user), nil
}

// requireStepInTx re-runs the step guard on the freshly loaded row, so
// the check and the write share one transaction and a concurrent
// transition cannot slip in between.
func (s *OnboardingService) requireStepInTx(ctx context.Context, userID int64, required domain.OnboardingState) error {
	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return RequireOnboardingStep(current, required)
}

func (s *OnboardingService) applyInterests(ctx context.Context, user *domain.User, input InterestsInput) error {
	if len(input.UnfollowTagIDs) > 0 {
		tagsToUnfollow, err := s.tags.FindAllByID(ctx, input.UnfollowTagIDs)
		if err != nil {
			return err
		}
		for _, tag := range tagsToUnfollow {
			if err := s.follows.UnfollowTag(ctx, user.ID, tag.ID); err != nil {
				return err
			}
		}
	}

	if len(input.NewTags) > 0 {
		newTags, err := s.tags.EnsureTagsExist(ctx, input.NewTags)
		if err != nil {
			return err
		}
		for _, tag := range newTags {
			if err := s.follows.FollowTag(ctx, user.ID, tag.ID); err != nil {
				return err
			}
		}
	}

	if len(input.TagIDs) > 0 {
		existingTags, err := s.tags.FindAllByID(ctx, input.TagIDs)
		if err != nil {
			return err
		}
		for _, tag := range existingTags {
			if err := s.follows.FollowTag(ctx, user.ID, tag.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// FollowInitialUsers performs the connections step. The caller must be
// at STEP_3. Unless skipped, the requested accounts are followed; the
// caller's own id and unknown ids contribute nothing. The step always
// finalizes onboarding and activates the account, even with an empty
// target set.
func (s *OnboardingService) FollowInitialUsers(ctx context.Context, user *domain.User, input ConnectionsInput, shouldSkip bool) (Progress, error) {
	if err := RequireOnboardingStep(user, domain.OnboardingStep3); err != nil {
		return Progress{}, err
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.requireStepInTx(ctx, user.ID, domain.OnboardingStep3); err != nil {
			return err
		}

		if !shouldSkip && len(input.UserIDs) > 0 {
			targets, err := s.users.FindAllByID(ctx, input.UserIDs)
			if err != nil {
				return err
			}
			for _, target := range targets {
				if target.ID == user.ID {
					continue
				}
				if err := s.follows.FollowUser(ctx, user.ID, target.ID); err != nil {
					return err
				}
			}
		}

		user.CompleteOnboarding(s.now())
		return s.users.Update(ctx, user)
	})
	if err != nil {
		return Progress{}, err
	}

	s.publish(ctx, events.Event{
		Type:   events.EventOnboardingCompleted,
		UserID: user.ID,
		Payload: events.OnboardingCompletedPayload{
			Email:       user.Email,
			CompletedAt: *user.OnboardingCompletedAt,
		},
	})
	return s.progress(user), nil
}

// RevertToPreviousStep moves the account one step back. It is callable
// from any in-progress step; a finished onboarding is immutable and the
// first step has no predecessor.
func (s *OnboardingService) RevertToPreviousStep(ctx context.Context, user *domain.User) (Progress, error) {
	if user.IsOnboardingFinished() {
		return Progress{}, apperrors.NewForbidden("onboarding has already been completed; status cannot be reverted")
	}
	if !user.IsVerified() {
		return Progress{}, apperrors.NewUnauthorized("account not verified; please check your email to proceed")
	}

	from := user.OnboardingState
	previous, ok := from.Previous()
	if !ok {
		return Progress{}, apperrors.NewBadRequest("cannot go back: user is already at the initial onboarding step")
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user.OnboardingState = previous
		return s.users.Update(ctx, user)
	})
	if err != nil {
		return Progress{}, err
	}

	s.publish(ctx, events.Event{
		Type:    events.EventOnboardingReverted,
		UserID:  user.ID,
		Payload: events.OnboardingRevertedPayload{From: from, To: previous},
	})
	return s.progress(user), nil
}

// GetCurrentStep returns the progress triple without any mutation.
func (s *OnboardingService) GetCurrentStep(user *domain.User) Progress {
	return s.progress(user)
}

func (s *OnboardingService) progress(user *domain.User) Progress {
	return Progress{
		CurrentState: user.OnboardingState,
		NextState:    user.OnboardingState.Next(),
		Completed:    user.IsOnboardingFinished(),
	}
}

func (s *OnboardingService) publishStepCompleted(ctx context.Context, user *domain.User, step domain.OnboardingState) {
	s.publish(ctx, events.Event{
		Type:   events.EventOnboardingStepCompleted,
		UserID: user.ID,
		Payload: events.StepCompletedPayload{
			Step:     step,
			NewState: user.OnboardingState,
		},
	})
}

func (s *OnboardingService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
