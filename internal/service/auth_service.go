package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpdeskpro/helpdesk-service/internal/auth"
	"github.com/helpdeskpro/helpdesk-service/internal/config"
	"github.com/helpdeskpro/helpdesk-service/internal/domain"
	"github.com/helpdeskpro/helpdesk-service/internal/repository"
	apperrors "github.com/helpdeskpro/helpdesk-service/pkg/util"
)

// Session is the result of a successful sign-up or sign-in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Profile   *domain.Profile
}

// AuthService coordinates registration, login and logout flows. Session
// validity is a valid JWT plus a live entry in the session store, so
// sign-out revokes every outstanding token of the user.
type AuthService struct {
	accounts   repository.AccountRepository
	profiles   repository.ProfileRepository
	sessions   auth.SessionStore
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	ProfileRepo repository.ProfileRepository
	Sessions    auth.SessionStore
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts:   deps.AccountRepo,
		profiles:   deps.ProfileRepo,
		sessions:   deps.Sessions,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// SignUp registers a new account and its profile, then opens a session.
func (s *AuthService) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("this email is already registered, try signing in", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	account := &domain.Account{
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, apperrors.MapError(err)
	}

	profile := &domain.Profile{
		ID:       account.ID,
		Email:    email,
		FullName: strings.TrimSpace(fullName),
		Role:     domain.RoleUser,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// the middleware provisions a missing profile on first use
		s.logger.Warn("profile creation failed during sign-up", zap.String("email", email), zap.Error(err))
	}

	return s.openSession(ctx, account.ID, profile)
}

// SignIn authenticates an account and opens a session, lazily provisioning
// the profile if it is missing.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid email or password")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid email or password")
	}
	if !account.EmailConfirmed {
		return nil, apperrors.NewForbidden("please confirm your email address before signing in")
	}

	profile, err := s.ensureProfile(ctx, account)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.openSession(ctx, account.ID, profile)
}

// SignOut revokes every live session for the user. Revocation failures are
// logged but never surface: the caller is signed out either way.
func (s *AuthService) SignOut(ctx context.Context, userID string) {
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		s.logger.Warn("session revocation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// UpdateProfile applies profile changes for the authenticated user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, fullName string, avatarURL *string) (*domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("profile", map[string]any{"id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if fullName != "" {
		profile.FullName = strings.TrimSpace(fullName)
	}
	if avatarURL != nil {
		profile.AvatarURL = avatarURL
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

// ensureProfile loads the user's profile, creating one with role "user" when
// absent. The create-then-reload is attempted once.
func (s *AuthService) ensureProfile(ctx context.Context, account *domain.Account) (*domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, account.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	created := &domain.Profile{
		ID:    account.ID,
		Email: account.Email,
		Role:  domain.RoleUser,
	}
	if err := s.profiles.Create(ctx, created); err != nil {
		// lost a race with a concurrent provisioner; reload once
		return s.profiles.GetByID(ctx, account.ID)
	}
	return created, nil
}

func (s *AuthService) openSession(ctx context.Context, userID string, profile *domain.Profile) (*Session, error) {
	role := domain.RoleUser
	if profile != nil {
		role = profile.Role
	}
	token, sessionID, expiresAt, err := s.tokenMgr.GenerateToken(userID, role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.sessions.Record(ctx, userID, sessionID, s.tokenMgr.SessionTTL()); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Profile: profile}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
