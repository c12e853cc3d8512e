package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusrooms/booking-api/internal/models"
	appErrors "github.com/campusrooms/booking-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	usersByEmail  map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	auditLogs     []*models.AuditLog
	revokedUsers  []string
	passwordSets  map[string]string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]*models.User),
		usersByEmail:  make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
		passwordSets:  make(map[string]string),
	}
}

func (m *mockAuthRepo) addUser(u *models.User) {
	m.users[u.ID] = u
	m.usersByEmail[u.Email] = u
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	m.passwordSets[id] = hash
	if u, ok := m.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	for _, t := range m.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	for _, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthFixture(t *testing.T, single bool) (*AuthService, *mockAuthRepo) {
	t.Helper()
	repo := newMockAuthRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse1"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.addUser(&models.User{
		ID: "u-42", Email: "rao@campus.edu", PasswordHash: string(hash),
		FullName: "Dr. Rao", Role: models.RoleFaculty, Department: "CSE", Active: true,
	})
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "unit-test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "campusrooms-booking-api",
		SingleSession:      single,
	})
	return svc, repo
}

func TestAuthLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues tokens with department claims", func(t *testing.T) {
		svc, repo := newAuthFixture(t, false)

		resp, err := svc.Login(ctx, models.LoginRequest{Email: "rao@campus.edu", Password: "correct-horse1"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "CSE", resp.User.Department)

		claims, err := svc.ValidateToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u-42", claims.UserID)
		assert.Equal(t, models.RoleFaculty, claims.Role)
		assert.Equal(t, "CSE", claims.Department)

		require.Len(t, repo.auditLogs, 1)
		assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		svc, _ := newAuthFixture(t, false)
		_, err := svc.Login(ctx, models.LoginRequest{Email: "rao@campus.edu", Password: "nope-nope"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	})

	t.Run("unknown email reads like wrong password", func(t *testing.T) {
		svc, _ := newAuthFixture(t, false)
		_, err := svc.Login(ctx, models.LoginRequest{Email: "ghost@campus.edu", Password: "whatever1"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	})

	t.Run("inactive account rejected", func(t *testing.T) {
		svc, repo := newAuthFixture(t, false)
		repo.users["u-42"].Active = false
		_, err := svc.Login(ctx, models.LoginRequest{Email: "rao@campus.edu", Password: "correct-horse1"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
	})

	t.Run("single session revokes earlier tokens", func(t *testing.T) {
		svc, repo := newAuthFixture(t, true)
		first, err := svc.Login(ctx, models.LoginRequest{Email: "rao@campus.edu", Password: "correct-horse1"})
		require.NoError(t, err)
		_, err = svc.Login(ctx, models.LoginRequest{Email: "rao@campus.edu", Password: "correct-horse1"})
		require.NoError(t, err)
		assert.True(t, repo.refreshTokens[first.RefreshToken].Revoked)
	})
}

func TestAuthRefreshRotation(t *testing.T) {
	ctx := context.Background()
	svc, repo := newAuthFixture(t, false)

	login, err := svc.Login(ctx, models.LoginRequest{Email: "rao@campus.edu", Password: "correct-horse1"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	// The rotated-out token cannot be replayed.
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	// The replacement still works.
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: refreshed.RefreshToken})
	require.NoError(t, err)
}

func TestAuthLogout(t *testing.T) {
	ctx := context.Background()
	svc, repo := newAuthFixture(t, false)

	login, err := svc.Login(ctx, models.LoginRequest{Email: "rao@campus.edu", Password: "correct-horse1"})
	require.NoError(t, err)

	t.Run("token of another user refused", func(t *testing.T) {
		err := svc.Logout(ctx, login.RefreshToken, "u-other", models.LoginRequest{})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	})

	t.Run("own token revoked", func(t *testing.T) {
		require.NoError(t, svc.Logout(ctx, login.RefreshToken, "u-42", models.LoginRequest{}))
		assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
	})
}

func TestAuthChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates hash and revokes sessions", func(t *testing.T) {
		svc, repo := newAuthFixture(t, false)
		err := svc.ChangePassword(ctx, "u-42", models.ChangePasswordRequest{
			OldPassword: "correct-horse1", NewPassword: "battery-staple2",
		})
		require.NoError(t, err)
		assert.Contains(t, repo.revokedUsers, "u-42")

		_, err = svc.Login(ctx, models.LoginRequest{Email: "rao@campus.edu", Password: "battery-staple2"})
		require.NoError(t, err)
	})

	t.Run("wrong old password refused", func(t *testing.T) {
		svc, _ := newAuthFixture(t, false)
		err := svc.ChangePassword(ctx, "u-42", models.ChangePasswordRequest{
			OldPassword: "not-it-at-all", NewPassword: "battery-staple2",
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	})

	t.Run("short new password refused", func(t *testing.T) {
		svc, _ := newAuthFixture(t, false)
		err := svc.ChangePassword(ctx, "u-42", models.ChangePasswordRequest{
			OldPassword: "correct-horse1", NewPassword: "short",
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture(t, false)
	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{
		AccessTokenSecret: "a-different-secret",
		AccessTokenExpiry: 15 * time.Minute,
	})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "rao@campus.edu", Password: "correct-horse1"})
	require.NoError(t, err)

	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.ValidateToken("not.a.jwt")
	require.Error(t, err)
}
