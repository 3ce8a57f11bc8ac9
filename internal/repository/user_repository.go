package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/tastyhub-service/internal/domain"
	"github.com/spec-kit/tastyhub-service/internal/persistence"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByUsernameExcludingID(ctx context.Context, username string, id int64) (bool, error)
	FindAllByID(ctx context.Context, ids []int64) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `
        id, first_name, last_name, email, username, bio, password_hash,
        date_of_birth, profile_picture_ref, profile_picture_alt, status,
        onboarding_state, onboarding_started_at, onboarding_completed_at,
        created_at, updated_at`

func (r *userRepository) q(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.pool)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (first_name, last_name, email, username, password_hash, status, onboarding_state)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	return r.q(ctx).QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Status,
		user.OnboardingState,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET
            first_name=$1, last_name=$2, email=$3, username=$4, bio=$5,
            password_hash=$6, date_of_birth=$7, profile_picture_ref=$8,
            profile_picture_alt=$9, status=$10, onboarding_state=$11,
            onboarding_started_at=$12, onboarding_completed_at=$13,
            updated_at=NOW()
        WHERE id=$14`

	cmd, err := r.q(ctx).Exec(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Username,
		user.Bio,
		user.PasswordHash,
		user.DateOfBirth,
		user.ProfilePictureRef,
		user.ProfilePictureAlt,
		user.Status,
		user.OnboardingState,
		user.OnboardingStartedAt,
		user.OnboardingCompletedAt,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE id=$1`
	return r.scanOne(r.q(ctx).QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE email=$1`
	return r.scanOne(r.q(ctx).QueryRow(ctx, query, email))
}

func (r *userRepository) ExistsByUsernameExcludingID(ctx context.Context, username string, id int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1 AND id<>$2)`

	var exists bool
	if err := r.q(ctx).QueryRow(ctx, query, username, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userRepository) FindAllByID(ctx context.Context, ids []int64) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}

	const query = `SELECT` + userColumns + ` FROM users WHERE id = ANY($1)`

	rows, err := r.q(ctx).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, len(ids))
	for rows.Next() {
		user, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *userRepository) scanOne(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Username,
		&user.Bio,
		&user.PasswordHash,
		&user.DateOfBirth,
		&user.ProfilePictureRef,
		&user.ProfilePictureAlt,
		&user.Status,
		&user.OnboardingState,
		&user.OnboardingStartedAt,
		&user.OnboardingCompletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
