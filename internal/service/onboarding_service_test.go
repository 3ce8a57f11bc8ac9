package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/tastyhub-service/internal/config"
	"github.com/spec-kit/tastyhub-service/internal/domain"
	"github.com/spec-kit/tastyhub-service/internal/events"
	"github.com/spec-kit/tastyhub-service/internal/storage"
	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

type onboardingFixture struct {
	service    *OnboardingService
	users      *fakeUserRepo
	follows    *fakeFollowRepo
	tagRepo    *fakeTagRepo
	images     *storage.ImageStore
	tx         *fakeTxManager
	dispatcher *recordingDispatcher
}

func newOnboardingFixture(t *testing.T) *onboardingFixture {
	t.Helper()

	users := newFakeUserRepo()
	follows := newFakeFollowRepo()
	tagRepo := newFakeTagRepo()
	tx := &fakeTxManager{}
	dispatcher := &recordingDispatcher{}

	images, err := storage.NewImageStore(config.UploadConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)

	svc := NewOnboardingService(OnboardingDependencies{
		UserRepo:   users,
		FollowRepo: follows,
		Tags:       NewTagService(tagRepo),
		Images:     images,
		Tx:         tx,
		Dispatcher: dispatcher,
	})

	return &onboardingFixture{
		service:    svc,
		users:      users,
		follows:    follows,
		tagRepo:    tagRepo,
		images:     images,
		tx:         tx,
		dispatcher: dispatcher,
	}
}

func (f *onboardingFixture) userAt(state domain.OnboardingState) *domain.User {
	user := f.users.add(domain.User{
		Email:           "cook@example.com",
		Username:        "cook",
		Status:          domain.UserStatusPending,
		OnboardingState: state,
	})
	return &user
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	return de.Code
}

func TestUpdateProfileAdvancesToStep2(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep1)
	dob := time.Date(1990, 5, 12, 0, 0, 0, 0, time.UTC)

	progress, err := f.service.UpdateProfile(context.Background(), user, ProfileInput{
		Username:    "  chef_anna ",
		Bio:         " loves pasta ",
		DateOfBirth: &dob,
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.OnboardingStep2, progress.CurrentState)
	assert.Equal(t, domain.OnboardingStep3, progress.NextState)
	assert.False(t, progress.Completed)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "chef_anna", stored.Username)
	assert.Equal(t, "loves pasta", stored.Bio)
	assert.Equal(t, domain.OnboardingStep2, stored.OnboardingState)

	completed := f.dispatcher.published(events.EventOnboardingStepCompleted)
	require.Len(t, completed, 1)
	payload := completed[0].Payload.(events.StepCompletedPayload)
	assert.Equal(t, domain.OnboardingStep1, payload.Step)
	assert.Equal(t, domain.OnboardingStep2, payload.NewState)
}

func TestUpdateProfileRejectsWrongStep(t *testing.T) {
	f := newOnboardingFixture(t)

	for _, state := range []domain.OnboardingState{
		domain.OnboardingPendingVerification,
		domain.OnboardingStep2,
		domain.OnboardingStep3,
		domain.OnboardingCompleted,
	} {
		user := f.userAt(state)
		_, err := f.service.UpdateProfile(context.Background(), user, ProfileInput{Username: "x"}, nil)
		assert.Equal(t, "FORBIDDEN", domainCode(t, err), "state %s", state)
	}
	assert.Zero(t, f.tx.calls, "guard failures must not open a transaction")
}

func TestUpdateProfileRejectsTakenUsername(t *testing.T) {
	f := newOnboardingFixture(t)
	f.users.add(domain.User{Username: "taken", Email: "other@example.com"})
	user := f.userAt(domain.OnboardingStep1)

	_, err := f.service.UpdateProfile(context.Background(), user, ProfileInput{Username: "taken"}, nil)
	assert.Equal(t, "CONFLICT", domainCode(t, err))

	stored, getErr := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.OnboardingStep1, stored.OnboardingState)
}

func TestUpdateProfileRejectsPaddedCollidingUsername(t *testing.T) {
	f := newOnboardingFixture(t)
	f.users.add(domain.User{Username: "taken", Email: "other@example.com"})
	user := f.userAt(domain.OnboardingStep1)

	_, err := f.service.UpdateProfile(context.Background(), user, ProfileInput{Username: " taken "}, nil)
	assert.Equal(t, "CONFLICT", domainCode(t, err), "surrounding whitespace must not sneak past the collision check")

	stored, getErr := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, getErr)
	assert.NotEqual(t, "taken", stored.Username)
	assert.Equal(t, domain.OnboardingStep1, stored.OnboardingState)
}

func TestUpdateProfileReverifiesStepInsideTransaction(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep1)

	// another session already advanced the account; the caller still
	// holds the stale row
	advanced := *user
	advanced.OnboardingState = domain.OnboardingStep2
	require.NoError(t, f.users.Update(context.Background(), &advanced))

	_, err := f.service.UpdateProfile(context.Background(), user, ProfileInput{Username: "anna"}, nil)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))

	stored, getErr := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.OnboardingStep2, stored.OnboardingState, "the stale caller must not win the write")
}

func TestSelectInterestsReverifiesStepInsideTransaction(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep2)

	advanced := *user
	advanced.OnboardingState = domain.OnboardingStep3
	require.NoError(t, f.users.Update(context.Background(), &advanced))

	_, err := f.service.SelectInterests(context.Background(), user, InterestsInput{}, true)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
}

func TestFollowInitialUsersReverifiesStepInsideTransaction(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep3)

	done := *user
	done.CompleteOnboarding(time.Now())
	require.NoError(t, f.users.Update(context.Background(), &done))

	_, err := f.service.FollowInitialUsers(context.Background(), user, ConnectionsInput{}, true)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	assert.Empty(t, f.dispatcher.published(events.EventOnboardingCompleted))
}

func TestUpdateProfileStoresPicture(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep1)

	progress, err := f.service.UpdateProfile(context.Background(), user, ProfileInput{
		Username:          "anna",
		ProfilePictureAlt: "me cooking",
	}, &ProfileFile{Name: "avatar.png", Reader: strings.NewReader("image-bytes")})

	require.NoError(t, err)
	assert.Equal(t, domain.OnboardingStep2, progress.CurrentState)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ProfilePictureRef)
	assert.Equal(t, "me cooking", stored.ProfilePictureAlt)
	assert.FileExists(t, f.images.Path(stored.ProfilePictureRef))
}

func TestUpdateProfileRollsBackNewPictureOnFailure(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep1)
	f.users.updateErr = errors.New("db down")

	_, err := f.service.UpdateProfile(context.Background(), user, ProfileInput{Username: "anna"},
		&ProfileFile{Name: "avatar.png", Reader: strings.NewReader("image-bytes")})
	require.Error(t, err)

	entries := uploadedFiles(t, f.images)
	assert.Empty(t, entries, "a failed transaction must leave no stored file behind")
}

func TestUpdateProfileReplacesOldPictureAfterCommit(t *testing.T) {
	f := newOnboardingFixture(t)

	oldRef, err := f.images.Store(context.Background(), "old.png", strings.NewReader("old"))
	require.NoError(t, err)
	user := f.users.add(domain.User{
		Email:             "cook@example.com",
		OnboardingState:   domain.OnboardingStep1,
		ProfilePictureRef: oldRef,
	})

	_, err = f.service.UpdateProfile(context.Background(), &user, ProfileInput{Username: "anna"},
		&ProfileFile{Name: "new.png", Reader: strings.NewReader("new")})
	require.NoError(t, err)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldRef, stored.ProfilePictureRef)
	assert.NoFileExists(t, f.images.Path(oldRef), "superseded avatar must be unlinked after commit")
	assert.FileExists(t, f.images.Path(stored.ProfilePictureRef))
}

func TestUpdateProfileKeepsOldPictureOnRollback(t *testing.T) {
	f := newOnboardingFixture(t)

	oldRef, err := f.images.Store(context.Background(), "old.png", strings.NewReader("old"))
	require.NoError(t, err)
	user := f.users.add(domain.User{
		Email:             "cook@example.com",
		OnboardingState:   domain.OnboardingStep1,
		ProfilePictureRef: oldRef,
	})
	f.tx.commitErr = errors.New("commit failed")

	_, err = f.service.UpdateProfile(context.Background(), &user, ProfileInput{Username: "anna"},
		&ProfileFile{Name: "new.png", Reader: strings.NewReader("new")})
	require.Error(t, err)

	assert.FileExists(t, f.images.Path(oldRef), "rollback must keep the avatar the old record points at")
	assert.Len(t, uploadedFiles(t, f.images), 1, "the new blob must be rolled back")
}

func TestSelectInterestsFollowsExistingAndNewTags(t *testing.T) {
	f := newOnboardingFixture(t)
	f.tagRepo = newFakeTagRepo("italian", "dessert", "grill", "soup", "asian")
	f.service.tags = NewTagService(f.tagRepo)
	user := f.userAt(domain.OnboardingStep2)

	progress, err := f.service.SelectInterests(context.Background(), user, InterestsInput{
		TagIDs:  []int64{1, 5},
		NewTags: []string{"vegan"},
	}, false)

	require.NoError(t, err)
	assert.Equal(t, domain.OnboardingStep3, progress.CurrentState)

	assert.True(t, f.follows.followsTag(user.ID, 1))
	assert.True(t, f.follows.followsTag(user.ID, 5))

	vegan, err := f.tagRepo.FindByNameIn(context.Background(), []string{"vegan"})
	require.NoError(t, err)
	require.Len(t, vegan, 1)
	assert.True(t, f.follows.followsTag(user.ID, vegan[0].ID))
}

func TestSelectInterestsUnknownIDsAreIgnored(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep2)

	progress, err := f.service.SelectInterests(context.Background(), user, InterestsInput{
		TagIDs: []int64{404},
	}, false)

	require.NoError(t, err)
	assert.Equal(t, domain.OnboardingStep3, progress.CurrentState)
	followed, err := f.follows.ListFollowedTagIDs(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, followed)
}

func TestSelectInterestsAppliesUnfollows(t *testing.T) {
	f := newOnboardingFixture(t)
	f.tagRepo = newFakeTagRepo("italian", "dessert")
	f.service.tags = NewTagService(f.tagRepo)
	user := f.userAt(domain.OnboardingStep2)
	require.NoError(t, f.follows.FollowTag(context.Background(), user.ID, 1))
	require.NoError(t, f.follows.FollowTag(context.Background(), user.ID, 2))

	_, err := f.service.SelectInterests(context.Background(), user, InterestsInput{
		UnfollowTagIDs: []int64{2},
	}, false)

	require.NoError(t, err)
	assert.True(t, f.follows.followsTag(user.ID, 1))
	assert.False(t, f.follows.followsTag(user.ID, 2))
}

func TestSelectInterestsSkipAdvancesWithoutSideEffects(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep2)

	progress, err := f.service.SelectInterests(context.Background(), user, InterestsInput{
		TagIDs:  []int64{1},
		NewTags: []string{"ignored"},
	}, true)

	require.NoError(t, err)
	assert.Equal(t, domain.OnboardingStep3, progress.CurrentState)

	followed, err := f.follows.ListFollowedTagIDs(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, followed, "skip must not touch the follow set")
	assert.Zero(t, f.tagRepo.saveCall, "skip must not create tags")
}

func TestSelectInterestsRollsBackOnFollowFailure(t *testing.T) {
	f := newOnboardingFixture(t)
	f.tagRepo = newFakeTagRepo("italian")
	f.service.tags = NewTagService(f.tagRepo)
	f.follows.followErr = errors.New("constraint violation")
	user := f.userAt(domain.OnboardingStep2)

	_, err := f.service.SelectInterests(context.Background(), user, InterestsInput{
		TagIDs: []int64{1},
	}, false)
	require.Error(t, err)

	stored, getErr := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.OnboardingStep2, stored.OnboardingState, "state must not advance when the step fails")
}

func TestFollowInitialUsersCompletesOnboarding(t *testing.T) {
	f := newOnboardingFixture(t)
	alice := f.users.add(domain.User{Email: "alice@example.com", OnboardingState: domain.OnboardingCompleted})
	bob := f.users.add(domain.User{Email: "bob@example.com", OnboardingState: domain.OnboardingCompleted})
	user := f.userAt(domain.OnboardingStep3)

	progress, err := f.service.FollowInitialUsers(context.Background(), user, ConnectionsInput{
		UserIDs: []int64{alice.ID, bob.ID},
	}, false)

	require.NoError(t, err)
	assert.Equal(t, domain.OnboardingCompleted, progress.CurrentState)
	assert.Equal(t, domain.OnboardingCompleted, progress.NextState)
	assert.True(t, progress.Completed)

	assert.True(t, f.follows.followsUser(user.ID, alice.ID))
	assert.True(t, f.follows.followsUser(user.ID, bob.ID))

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusActive, stored.Status)
	require.NotNil(t, stored.OnboardingCompletedAt)

	completed := f.dispatcher.published(events.EventOnboardingCompleted)
	require.Len(t, completed, 1)
}

func TestFollowInitialUsersSkipsSelfAndUnknown(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep3)

	progress, err := f.service.FollowInitialUsers(context.Background(), user, ConnectionsInput{
		UserIDs: []int64{user.ID, 9999},
	}, false)

	require.NoError(t, err)
	assert.True(t, progress.Completed)
	following, err := f.follows.ListFollowingIDs(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, following, "self and unknown ids must contribute nothing")
}

func TestFollowInitialUsersEmptySetStillCompletes(t *testing.T) {
	f := newOnboardingFixture(t)
	user := f.userAt(domain.OnboardingStep3)

	progress, err := f.service.FollowInitialUsers(context.Background(), user, ConnectionsInput{}, false)
	require.NoError(t, err)
	assert.True(t, progress.Completed)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusActive, stored.Status)
}

func TestFollowInitialUsersSkipCompletesWithoutFollows(t *testing.T) {
	f := newOnboardingFixture(t)
	target := f.users.add(domain.User{Email: "t@example.com", OnboardingState: domain.OnboardingCompleted})
	user := f.userAt(domain.OnboardingStep3)

	progress, err := f.service.FollowInitialUsers(context.Background(), user, ConnectionsInput{
		UserIDs: []int64{target.ID},
	}, true)

	require.NoError(t, err)
	assert.True(t, progress.Completed)
	assert.False(t, f.follows.followsUser(user.ID, target.ID))
}

func TestRevertToPreviousStep(t *testing.T) {
	f := newOnboardingFixture(t)

	t.Run("step3 back to step2", func(t *testing.T) {
		user := f.userAt(domain.OnboardingStep3)
		progress, err := f.service.RevertToPreviousStep(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, domain.OnboardingStep2, progress.CurrentState)

		reverted := f.dispatcher.published(events.EventOnboardingReverted)
		require.NotEmpty(t, reverted)
		payload := reverted[len(reverted)-1].Payload.(events.OnboardingRevertedPayload)
		assert.Equal(t, domain.OnboardingStep3, payload.From)
		assert.Equal(t, domain.OnboardingStep2, payload.To)
	})

	t.Run("step2 back to step1", func(t *testing.T) {
		user := f.userAt(domain.OnboardingStep2)
		progress, err := f.service.RevertToPreviousStep(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, domain.OnboardingStep1, progress.CurrentState)
	})
}

func TestRevertToPreviousStepErrors(t *testing.T) {
	f := newOnboardingFixture(t)

	tests := []struct {
		name     string
		state    domain.OnboardingState
		wantCode string
	}{
		{"completed is immutable", domain.OnboardingCompleted, "FORBIDDEN"},
		{"unverified cannot revert", domain.OnboardingPendingVerification, "UNAUTHORIZED"},
		{"first step has no predecessor", domain.OnboardingStep1, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := f.userAt(tt.state)
			before := f.tx.calls

			_, err := f.service.RevertToPreviousStep(context.Background(), user)
			assert.Equal(t, tt.wantCode, domainCode(t, err))
			assert.Equal(t, before, f.tx.calls, "a rejected revert must not open a transaction")

			stored, getErr := f.users.GetByID(context.Background(), user.ID)
			require.NoError(t, getErr)
			assert.Equal(t, tt.state, stored.OnboardingState)
		})
	}
}

func TestGetCurrentStep(t *testing.T) {
	f := newOnboardingFixture(t)

	user := f.userAt(domain.OnboardingStep2)
	progress := f.service.GetCurrentStep(user)
	assert.Equal(t, domain.OnboardingStep2, progress.CurrentState)
	assert.Equal(t, domain.OnboardingStep3, progress.NextState)
	assert.False(t, progress.Completed)

	done := f.userAt(domain.OnboardingCompleted)
	progress = f.service.GetCurrentStep(done)
	assert.True(t, progress.Completed)
	assert.Equal(t, domain.OnboardingCompleted, progress.NextState)
}

func uploadedFiles(t *testing.T, store *storage.ImageStore) []string {
	t.Helper()
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
