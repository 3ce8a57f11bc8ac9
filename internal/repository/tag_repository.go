package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/tastyhub-service/internal/domain"
	"github.com/spec-kit/tastyhub-service/internal/persistence"
)

// TagRepository persists followable recipe tags.
type TagRepository interface {
	FindAllByID(ctx context.Context, ids []int64) ([]domain.Tag, error)
	FindByNameIn(ctx context.Context, names []string) ([]domain.Tag, error)
	SaveAll(ctx context.Context, tags []domain.Tag) ([]domain.Tag, error)
}

type tagRepository struct {
	pool *pgxpool.Pool
}

// NewTagRepository constructs repository.
func NewTagRepository(pool *pgxpool.Pool) TagRepository {
	return &tagRepository{pool: pool}
}

func (r *tagRepository) q(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.pool)
}

func (r *tagRepository) FindAllByID(ctx context.Context, ids []int64) ([]domain.Tag, error) {
	if len(ids) == 0 {
		return []domain.Tag{}, nil
	}

	const query = `SELECT id, name, created_at FROM tags WHERE id = ANY($1)`
	return r.list(ctx, query, ids)
}

func (r *tagRepository) FindByNameIn(ctx context.Context, names []string) ([]domain.Tag, error) {
	if len(names) == 0 {
		return []domain.Tag{}, nil
	}

	const query = `SELECT id, name, created_at FROM tags WHERE name = ANY($1)`
	return r.list(ctx, query, names)
}

// SaveAll inserts the given tags, returning them with assigned ids. A
// concurrent insert of the same name is absorbed by the unique
// constraint: the existing row is returned instead.
func (r *tagRepository) SaveAll(ctx context.Context, tags []domain.Tag) ([]domain.Tag, error) {
	const query = `
        INSERT INTO tags (name) VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id, name, created_at`

	saved := make([]domain.Tag, 0, len(tags))
	for _, tag := range tags {
		var out domain.Tag
		if err := r.q(ctx).QueryRow(ctx, query, tag.Name).Scan(&out.ID, &out.Name, &out.CreatedAt); err != nil {
			return nil, err
		}
		saved = append(saved, out)
	}
	return saved, nil
}

func (r *tagRepository) list(ctx context.Context, query string, arg any) ([]domain.Tag, error) {
	rows, err := r.q(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
