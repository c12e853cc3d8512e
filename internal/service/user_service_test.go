package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusrooms/booking-api/internal/models"
	appErrors "github.com/campusrooms/booking-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	byEmail   map[string]*models.User
	deleted   []string
	auditLogs []*models.AuditLog
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (m *mockUserRepo) add(u *models.User) {
	m.users[u.ID] = u
	m.byEmail[u.Email] = u
}

func (m *mockUserRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.add(user)
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if u, ok := m.users[id]; ok {
		u.Active = false
	}
	return nil
}

func (m *mockUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserCreate(t *testing.T) {
	ctx := context.Background()
	meta := models.LoginRequest{IP: "10.0.0.1", UserAgent: "unit-test"}

	t.Run("hashes password and normalizes email", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := NewUserService(repo, nil, nil)

		user, err := svc.Create(ctx, CreateUserRequest{
			Email: "New.Incharge@Campus.edu", FullName: "Prof. Iyer",
			Role: models.RoleIncharge, Department: "ECE", Active: true, Password: "s3cret-enough",
		}, "u-admin", meta)
		require.NoError(t, err)
		assert.Equal(t, "new.incharge@campus.edu", user.Email)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-enough")))
		require.Len(t, repo.auditLogs, 1)
		assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
		assert.Equal(t, "10.0.0.1", repo.auditLogs[0].IPAddress)
	})

	t.Run("incharge requires a department", func(t *testing.T) {
		svc := NewUserService(newMockUserRepo(), nil, nil)
		_, err := svc.Create(ctx, CreateUserRequest{
			Email: "hod@campus.edu", FullName: "Prof. Iyer",
			Role: models.RoleIncharge, Password: "s3cret-enough",
		}, "u-admin", meta)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})

	t.Run("faculty without department is fine", func(t *testing.T) {
		svc := NewUserService(newMockUserRepo(), nil, nil)
		_, err := svc.Create(ctx, CreateUserRequest{
			Email: "guest@campus.edu", FullName: "Guest Faculty",
			Role: models.RoleFaculty, Password: "s3cret-enough",
		}, "u-admin", meta)
		require.NoError(t, err)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		repo := newMockUserRepo()
		repo.add(&models.User{ID: "u-1", Email: "taken@campus.edu"})
		svc := NewUserService(repo, nil, nil)

		_, err := svc.Create(ctx, CreateUserRequest{
			Email: "taken@campus.edu", FullName: "Someone",
			Role: models.RoleFaculty, Password: "s3cret-enough",
		}, "u-admin", meta)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	})

	t.Run("short password rejected", func(t *testing.T) {
		svc := NewUserService(newMockUserRepo(), nil, nil)
		_, err := svc.Create(ctx, CreateUserRequest{
			Email: "x@campus.edu", FullName: "X", Role: models.RoleFaculty, Password: "short",
		}, "u-admin", meta)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})
}

func TestUserUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	meta := models.LoginRequest{}

	seed := func() (*UserService, *mockUserRepo) {
		repo := newMockUserRepo()
		repo.add(&models.User{
			ID: "u-42", Email: "rao@campus.edu", FullName: "Dr. Rao",
			Role: models.RoleFaculty, Department: "CSE", Active: true,
		})
		return NewUserService(repo, nil, nil), repo
	}

	t.Run("role change to incharge keeps department", func(t *testing.T) {
		svc, repo := seed()
		user, err := svc.Update(ctx, "u-42", UpdateUserRequest{
			FullName: "Dr. Rao", Role: models.RoleIncharge, Department: "CSE",
		}, "u-admin", meta)
		require.NoError(t, err)
		assert.Equal(t, models.RoleIncharge, user.Role)
		require.Len(t, repo.auditLogs, 1)
		assert.NotEmpty(t, repo.auditLogs[0].OldValues)
	})

	t.Run("unknown user not found", func(t *testing.T) {
		svc, _ := seed()
		_, err := svc.Update(ctx, "u-gone", UpdateUserRequest{
			FullName: "Nobody", Role: models.RoleFaculty,
		}, "u-admin", meta)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})

	t.Run("delete deactivates instead of removing", func(t *testing.T) {
		svc, repo := seed()
		require.NoError(t, svc.Delete(ctx, "u-42", "u-admin", meta))
		assert.Equal(t, []string{"u-42"}, repo.deleted)
		assert.False(t, repo.users["u-42"].Active)
		require.Len(t, repo.auditLogs, 1)
		assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)
	})
}
