package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpdeskpro/helpdesk-service/internal/domain"
	"github.com/helpdeskpro/helpdesk-service/internal/repository"
	apperrors "github.com/helpdeskpro/helpdesk-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Profile *domain.Profile
}

// IsAdmin reports whether the caller holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Profile != nil && p.Profile.Role == domain.RoleAdmin
}

// IsAgent reports whether the caller is an agent or admin.
func (p *Principal) IsAgent() bool {
	if p == nil || p.Profile == nil {
		return false
	}
	return p.Profile.Role == domain.RoleAgent || p.Profile.Role == domain.RoleAdmin
}

// AuthMiddleware validates bearer tokens, checks the session store and
// loads the caller's profile as the request principal.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions SessionStore
	profiles repository.ProfileRepository
	accounts repository.AccountRepository
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions SessionStore, profiles repository.ProfileRepository, accounts repository.AccountRepository, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		sessions: sessions,
		profiles: profiles,
		accounts: accounts,
		logger:   logger,
	}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	live, err := m.sessions.IsLive(c.UserContext(), claims.UserID, claims.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !live {
		return apperrors.NewUnauthorized("session revoked")
	}

	profile, err := m.loadProfile(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{Profile: profile})
	return c.Next()
}

// loadProfile fetches the caller's profile, provisioning one with role
// "user" on first authenticated use. The create-then-retry happens once.
func (m *AuthMiddleware) loadProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := m.profiles.GetByID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	account, err := m.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	created := &domain.Profile{
		ID:    account.ID,
		Email: account.Email,
		Role:  domain.RoleUser,
	}
	if err := m.profiles.Create(ctx, created); err != nil {
		m.logger.Warn("profile provisioning failed", zap.String("user_id", userID), zap.Error(err))
		return m.profiles.GetByID(ctx, userID)
	}
	return created, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
