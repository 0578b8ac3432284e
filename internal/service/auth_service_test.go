package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdeskpro/helpdesk-service/internal/config"
	"github.com/helpdeskpro/helpdesk-service/internal/domain"
	apperrors "github.com/helpdeskpro/helpdesk-service/pkg/util"
)

type fakeAccountRepo struct {
	byEmail map[string]*domain.Account
	byID    map[string]*domain.Account
	nextID  int
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		byEmail: make(map[string]*domain.Account),
		byID:    make(map[string]*domain.Account),
	}
}

func (f *fakeAccountRepo) Create(_ context.Context, account *domain.Account) error {
	f.nextID++
	account.ID = "acct-" + strconv.Itoa(f.nextID)
	account.CreatedAt = time.Now()
	copied := *account
	f.byEmail[account.Email] = &copied
	f.byID[account.ID] = &copied
	return nil
}

func (f *fakeAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	account, ok := f.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *account
	return &copied, nil
}

func (f *fakeAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	account, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *account
	return &copied, nil
}

type fakeProfileRepo struct {
	profiles map[string]*domain.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*domain.Profile)}
}

func (f *fakeProfileRepo) Create(_ context.Context, profile *domain.Profile) error {
	copied := *profile
	f.profiles[profile.ID] = &copied
	return nil
}

func (f *fakeProfileRepo) Update(_ context.Context, profile *domain.Profile) error {
	if _, ok := f.profiles[profile.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *profile
	f.profiles[profile.ID] = &copied
	return nil
}

func (f *fakeProfileRepo) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	profile, ok := f.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeProfileRepo) ListAll(context.Context) ([]domain.Profile, error) {
	var out []domain.Profile
	for _, p := range f.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProfileRepo) CountAll(context.Context) (int64, error) {
	return int64(len(f.profiles)), nil
}

type fakeSessionStore struct {
	live map[string]map[string]bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{live: make(map[string]map[string]bool)}
}

func (f *fakeSessionStore) Record(_ context.Context, userID, sessionID string, _ time.Duration) error {
	if f.live[userID] == nil {
		f.live[userID] = make(map[string]bool)
	}
	f.live[userID][sessionID] = true
	return nil
}

func (f *fakeSessionStore) IsLive(_ context.Context, userID, sessionID string) (bool, error) {
	return f.live[userID][sessionID], nil
}

func (f *fakeSessionStore) RevokeAll(_ context.Context, userID string) error {
	delete(f.live, userID)
	return nil
}

func (f *fakeSessionStore) count(userID string) int {
	return len(f.live[userID])
}

func newAuthFixture() (*AuthService, *fakeAccountRepo, *fakeProfileRepo, *fakeSessionStore) {
	accounts := newFakeAccountRepo()
	profiles := newFakeProfileRepo()
	sessions := newFakeSessionStore()
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            4,
		},
	}
	svc := NewAuthService(cfg, AuthDependencies{
		AccountRepo: accounts,
		ProfileRepo: profiles,
		Sessions:    sessions,
		Logger:      zap.NewNop(),
	})
	return svc, accounts, profiles, sessions
}

func TestAuthService_SignUpAndSignIn(t *testing.T) {
	svc, _, _, sessions := newAuthFixture()

	session, err := svc.SignUp(context.Background(), "Alice@Example.COM ", "s3cret", "Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	require.NotNil(t, session.Profile)
	assert.Equal(t, "alice@example.com", session.Profile.Email)
	assert.Equal(t, domain.RoleUser, session.Profile.Role)
	assert.Equal(t, 1, sessions.count(session.Profile.ID))

	signedIn, err := svc.SignIn(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, signedIn.Token)
	assert.Equal(t, 2, sessions.count(session.Profile.ID))
}

func TestAuthService_SignUpDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	_, err := svc.SignUp(context.Background(), "bob@example.com", "pw", "Bob")
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), "bob@example.com", "pw2", "Bobby")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Contains(t, domainErr.Message, "already registered")
}

func TestAuthService_SignInWrongPassword(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	_, err := svc.SignUp(context.Background(), "carol@example.com", "right", "Carol")
	require.NoError(t, err)

	_, err = svc.SignIn(context.Background(), "carol@example.com", "wrong")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)
}

func TestAuthService_SignInUnknownEmailSameError(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	_, err := svc.SignIn(context.Background(), "ghost@example.com", "pw")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)
	assert.Equal(t, "invalid email or password", domainErr.Message)
}

func TestAuthService_SignInUnconfirmedEmail(t *testing.T) {
	svc, accounts, _, _ := newAuthFixture()

	_, err := svc.SignUp(context.Background(), "dave@example.com", "pw", "Dave")
	require.NoError(t, err)
	accounts.byEmail["dave@example.com"].EmailConfirmed = false

	_, err = svc.SignIn(context.Background(), "dave@example.com", "pw")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "FORBIDDEN", domainErr.Code)
}

func TestAuthService_SignInProvisionsMissingProfile(t *testing.T) {
	svc, _, profiles, _ := newAuthFixture()

	session, err := svc.SignUp(context.Background(), "erin@example.com", "pw", "Erin")
	require.NoError(t, err)
	delete(profiles.profiles, session.Profile.ID)

	signedIn, err := svc.SignIn(context.Background(), "erin@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, signedIn.Profile)
	assert.Equal(t, domain.RoleUser, signedIn.Profile.Role)

	provisioned, err := profiles.GetByID(context.Background(), session.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", provisioned.Email)
}

func TestAuthService_SignOutRevokesAllSessions(t *testing.T) {
	svc, _, _, sessions := newAuthFixture()

	first, err := svc.SignUp(context.Background(), "frank@example.com", "pw", "Frank")
	require.NoError(t, err)
	_, err = svc.SignIn(context.Background(), "frank@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, 2, sessions.count(first.Profile.ID))

	svc.SignOut(context.Background(), first.Profile.ID)
	assert.Equal(t, 0, sessions.count(first.Profile.ID))
}

func TestAuthService_UpdateProfile(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	session, err := svc.SignUp(context.Background(), "gina@example.com", "pw", "Gina")
	require.NoError(t, err)

	avatar := "https://cdn.example.com/gina.png"
	profile, err := svc.UpdateProfile(context.Background(), session.Profile.ID, "Gina R.", &avatar)
	require.NoError(t, err)
	assert.Equal(t, "Gina R.", profile.FullName)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, avatar, *profile.AvatarURL)
}

func TestAuthService_UpdateProfileMissing(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	_, err := svc.UpdateProfile(context.Background(), "nope", "Name", nil)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}
