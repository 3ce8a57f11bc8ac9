package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tastyhub-service/internal/auth"
	"github.com/spec-kit/tastyhub-service/internal/config"
	"github.com/spec-kit/tastyhub-service/internal/domain"
	"github.com/spec-kit/tastyhub-service/internal/events"
	"github.com/spec-kit/tastyhub-service/internal/repository"
	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

// AuthResult bundles the tokens issued after a successful
// authentication step.
type AuthResult struct {
	User         *domain.User
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string
}

// AuthService coordinates signup, email verification and login flows.
type AuthService struct {
	users           repository.UserRepository
	tokens          repository.TokenRepository
	tokenMgr        *auth.TokenManager
	dispatcher      events.Dispatcher
	bcryptCost      int
	verificationTTL time.Duration
	refreshTTL      time.Duration
	now             func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	TokenRepo  repository.TokenRepository
	Dispatcher events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:           deps.UserRepo,
		tokens:          deps.TokenRepo,
		tokenMgr:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		dispatcher:      deps.Dispatcher,
		bcryptCost:      cfg.Auth.BcryptCost,
		verificationTTL: time.Duration(cfg.Auth.VerificationTTLHours) * time.Hour,
		refreshTTL:      time.Duration(cfg.Auth.RefreshTokenTTLHours) * time.Hour,
		now:             time.Now,
	}
}

// Signup creates a pending account and issues an email-verification
// token. The account stays in PENDING_VERIFICATION until the token is
// redeemed.
func (s *AuthService) Signup(ctx context.Context, firstName, lastName, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", apperrors.NewBadRequest("this email is already in use")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		FirstName:       firstName,
		LastName:        lastName,
		Email:           email,
		Username:        email,
		PasswordHash:    hash,
		Status:          domain.UserStatusPending,
		OnboardingState: domain.OnboardingPendingVerification,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	verificationToken, err := s.tokens.CreateVerificationToken(ctx, user.ID, s.verificationTTL)
	if err != nil {
		return nil, "", apperrors.NewInfrastructureError("could not issue verification token", err)
	}

	s.publishAuth(ctx, events.Event{
		Type:   events.EventUserRegistered,
		UserID: user.ID,
		Payload: events.UserRegisteredPayload{
			Email:             user.Email,
			VerificationToken: verificationToken,
		},
	})
	return user, verificationToken, nil
}

// VerifyEmail redeems a verification token and moves the account into
// the first onboarding step.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*AuthResult, error) {
	userID, err := s.tokens.ConsumeVerificationToken(ctx, token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, apperrors.NewBadRequest("invalid or expired verification token")
	}
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.StartOnboarding(s.now()); err != nil {
		return nil, apperrors.NewBadRequest("account already verified")
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.publishAuth(ctx, events.Event{Type: events.EventUserVerified, UserID: user.ID})
	return s.issueTokens(ctx, user)
}

// Login authenticates by email and password. Unverified accounts may
// not log in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsVerified() {
		return nil, apperrors.NewForbidden("please verify your email before logging in")
	}
	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token into a fresh token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, apperrors.NewUnauthorized("refresh token expired or revoked; please log in again")
	}
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes a refresh token. Access tokens stay stateless.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*AuthResult, error) {
	accessToken, expiresAt, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.CreateRefreshToken(ctx, user.ID, s.refreshTTL)
	if err != nil {
		return nil, apperrors.NewInfrastructureError("could not issue refresh token", err)
	}
	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		ExpiresAt:    expiresAt,
		RefreshToken: refreshToken,
	}, nil
}

func (s *AuthService) publishAuth(ctx context.Context, event events.Event) {
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
