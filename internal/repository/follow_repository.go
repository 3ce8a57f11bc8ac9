package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/tastyhub-service/internal/persistence"
)

// FollowRepository manages the tag-follow and user-follow relations.
// All writes are idempotent set operations.
type FollowRepository interface {
	FollowTag(ctx context.Context, userID, tagID int64) error
	UnfollowTag(ctx context.Context, userID, tagID int64) error
	ListFollowedTagIDs(ctx context.Context, userID int64) ([]int64, error)
	FollowUser(ctx context.Context, followerID, followingID int64) error
	ListFollowingIDs(ctx context.Context, followerID int64) ([]int64, error)
}

type followRepository struct {
	pool *pgxpool.Pool
}

// NewFollowRepository constructs repository.
func NewFollowRepository(pool *pgxpool.Pool) FollowRepository {
	return &followRepository{pool: pool}
}

func (r *followRepository) q(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.pool)
}

func (r *followRepository) FollowTag(ctx context.Context, userID, tagID int64) error {
	const query = `
        INSERT INTO user_following_tags (user_id, tag_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING`

	_, err := r.q(ctx).Exec(ctx, query, userID, tagID)
	return err
}

func (r *followRepository) UnfollowTag(ctx context.Context, userID, tagID int64) error {
	const query = `DELETE FROM user_following_tags WHERE user_id=$1 AND tag_id=$2`

	_, err := r.q(ctx).Exec(ctx, query, userID, tagID)
	return err
}

func (r *followRepository) ListFollowedTagIDs(ctx context.Context, userID int64) ([]int64, error) {
	const query = `SELECT tag_id FROM user_following_tags WHERE user_id=$1 ORDER BY tag_id`
	return r.listIDs(ctx, query, userID)
}

func (r *followRepository) FollowUser(ctx context.Context, followerID, followingID int64) error {
	const query = `
        INSERT INTO follows (follower_id, following_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING`

	_, err := r.q(ctx).Exec(ctx, query, followerID, followingID)
	return err
}

func (r *followRepository) ListFollowingIDs(ctx context.Context, followerID int64) ([]int64, error) {
	const query = `SELECT following_id FROM follows WHERE follower_id=$1 ORDER BY following_id`
	return r.listIDs(ctx, query, followerID)
}

func (r *followRepository) listIDs(ctx context.Context, query string, arg any) ([]int64, error) {
	rows, err := r.q(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
