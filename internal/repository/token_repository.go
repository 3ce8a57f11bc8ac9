package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when an opaque token is unknown or has
// expired out of the store.
var ErrTokenNotFound = errors.New("token not found or expired")

// TokenRepository holds the ephemeral email-verification and refresh
// tokens in Redis. Tokens are opaque UUIDs mapping to a user id and
// expire through the store's TTL; consuming a token deletes it, so each
// is single-use.
type TokenRepository interface {
	CreateVerificationToken(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	ConsumeVerificationToken(ctx context.Context, token string) (int64, error)
	CreateRefreshToken(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	ConsumeRefreshToken(ctx context.Context, token string) (int64, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

type tokenRepository struct {
	client *redis.Client
}

// NewTokenRepository returns a Redis-backed implementation.
func NewTokenRepository(client *redis.Client) TokenRepository {
	return &tokenRepository{client: client}
}

const (
	verificationPrefix = "verification:"
	refreshPrefix      = "refresh:"
)

func (r *tokenRepository) CreateVerificationToken(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	return r.create(ctx, verificationPrefix, userID, ttl)
}

func (r *tokenRepository) ConsumeVerificationToken(ctx context.Context, token string) (int64, error) {
	return r.consume(ctx, verificationPrefix+token)
}

func (r *tokenRepository) CreateRefreshToken(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	return r.create(ctx, refreshPrefix, userID, ttl)
}

func (r *tokenRepository) ConsumeRefreshToken(ctx context.Context, token string) (int64, error) {
	return r.consume(ctx, refreshPrefix+token)
}

func (r *tokenRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	return r.client.Del(ctx, refreshPrefix+token).Err()
}

func (r *tokenRepository) create(ctx context.Context, prefix string, userID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	value := strconv.FormatInt(userID, 10)
	if err := r.client.Set(ctx, prefix+token, value, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (r *tokenRepository) consume(ctx context.Context, key string) (int64, error) {
	value, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}
