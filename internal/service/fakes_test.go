package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tastyhub-service/internal/domain"
	"github.com/spec-kit/tastyhub-service/internal/events"
	"github.com/spec-kit/tastyhub-service/internal/persistence"
	"github.com/spec-kit/tastyhub-service/internal/repository"
)

// fakeTxManager runs the unit of work in-process and fires completion
// hooks with the real outcome, so compensation behaves as in
// production. commitErr simulates a failure at commit time.
type fakeTxManager struct {
	commitErr error
	calls     int
}

func (m *fakeTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	txCtx, hooks := persistence.WithCompletionHooks(ctx)

	err := fn(txCtx)
	if err == nil {
		err = m.commitErr
	}
	hooks.Fire(err == nil, nil)
	return err
}

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[int64]domain.User
	nextID    int64
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]domain.User{}, nextID: 1}
}

func (r *fakeUserRepo) add(user domain.User) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	} else if user.ID >= r.nextID {
		r.nextID = user.ID + 1
	}
	r.users[user.ID] = user
	return user
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ExistsByUsernameExcludingID(ctx context.Context, username string, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username && user.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) FindAllByID(ctx context.Context, ids []int64) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := []domain.User{}
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			found = append(found, user)
		}
	}
	return found, nil
}

type followKey struct{ a, b int64 }

type fakeFollowRepo struct {
	mu        sync.Mutex
	tags      map[followKey]bool
	users     map[followKey]bool
	followErr error
}

func newFakeFollowRepo() *fakeFollowRepo {
	return &fakeFollowRepo{tags: map[followKey]bool{}, users: map[followKey]bool{}}
}

func (r *fakeFollowRepo) FollowTag(ctx context.Context, userID, tagID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.followErr != nil {
		return r.followErr
	}
	r.tags[followKey{userID, tagID}] = true
	return nil
}

func (r *fakeFollowRepo) UnfollowTag(ctx context.Context, userID, tagID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tags, followKey{userID, tagID})
	return nil
}

func (r *fakeFollowRepo) ListFollowedTagIDs(ctx context.Context, userID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []int64{}
	for key := range r.tags {
		if key.a == userID {
			ids = append(ids, key.b)
		}
	}
	return ids, nil
}

func (r *fakeFollowRepo) FollowUser(ctx context.Context, followerID, followingID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.followErr != nil {
		return r.followErr
	}
	r.users[followKey{followerID, followingID}] = true
	return nil
}

func (r *fakeFollowRepo) ListFollowingIDs(ctx context.Context, followerID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []int64{}
	for key := range r.users {
		if key.a == followerID {
			ids = append(ids, key.b)
		}
	}
	return ids, nil
}

func (r *fakeFollowRepo) followsTag(userID, tagID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tags[followKey{userID, tagID}]
}

func (r *fakeFollowRepo) followsUser(followerID, followingID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[followKey{followerID, followingID}]
}

type fakeTagRepo struct {
	mu       sync.Mutex
	byName   map[string]domain.Tag
	nextID   int64
	saveErr  error
	saveCall int
}

func newFakeTagRepo(names ...string) *fakeTagRepo {
	r := &fakeTagRepo{byName: map[string]domain.Tag{}, nextID: 1}
	for _, name := range names {
		r.byName[name] = domain.Tag{ID: r.nextID, Name: name}
		r.nextID++
	}
	return r
}

func (r *fakeTagRepo) FindAllByID(ctx context.Context, ids []int64) ([]domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := []domain.Tag{}
	for _, id := range ids {
		for _, tag := range r.byName {
			if tag.ID == id {
				found = append(found, tag)
			}
		}
	}
	return found, nil
}

func (r *fakeTagRepo) FindByNameIn(ctx context.Context, names []string) ([]domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := []domain.Tag{}
	for _, name := range names {
		if tag, ok := r.byName[name]; ok {
			found = append(found, tag)
		}
	}
	return found, nil
}

func (r *fakeTagRepo) SaveAll(ctx context.Context, tags []domain.Tag) ([]domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCall++
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	saved := make([]domain.Tag, 0, len(tags))
	for _, tag := range tags {
		if existing, ok := r.byName[tag.Name]; ok {
			saved = append(saved, existing)
			continue
		}
		tag.ID = r.nextID
		r.nextID++
		r.byName[tag.Name] = tag
		saved = append(saved, tag)
	}
	return saved, nil
}

type fakeTokenRepo struct {
	mu           sync.Mutex
	verification map[string]int64
	refresh      map[string]int64
	nextToken    int
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{verification: map[string]int64{}, refresh: map[string]int64{}}
}

func (r *fakeTokenRepo) issue(store map[string]int64, userID int64) string {
	r.nextToken++
	token := "token-" + strconv.Itoa(r.nextToken)
	store[token] = userID
	return token
}

func (r *fakeTokenRepo) CreateVerificationToken(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issue(r.verification, userID), nil
}

func (r *fakeTokenRepo) ConsumeVerificationToken(ctx context.Context, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.verification[token]
	if !ok {
		return 0, repository.ErrTokenNotFound
	}
	delete(r.verification, token)
	return userID, nil
}

func (r *fakeTokenRepo) CreateRefreshToken(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issue(r.refresh, userID), nil
}

func (r *fakeTokenRepo) ConsumeRefreshToken(ctx context.Context, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.refresh[token]
	if !ok {
		return 0, repository.ErrTokenNotFound
	}
	delete(r.refresh, token)
	return userID, nil
}

func (r *fakeTokenRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refresh, token)
	return nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *recordingDispatcher) published(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	matched := []events.Event{}
	for _, event := range d.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}
