package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
)

type mockUserRepo struct {
	users          map[string]*models.User
	listUsers      []models.User
	listCount      int
	listErr        error
	listFilter     models.UserFilter
	findByIDErr    error
	findByEmailErr error
	auditLogs      []*models.AuditLog
	revoked        []string
	writes         int
	writeErr       error
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if m.listUsers != nil {
		return m.listUsers, m.listCount, nil
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ListActiveAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	for _, u := range m.users {
		if u.IsActiveAdmin() {
			admins = append(admins, *u)
		}
	}
	return admins, nil
}

func (m *mockUserRepo) CountActiveAdmins(ctx context.Context) (int, error) {
	admins, _ := m.ListActiveAdmins(ctx)
	return len(admins), nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.writes++
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	m.writes++
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	m.writes++
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func soleAdminRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{
		"admin": {ID: "admin", Name: "Root", Email: "root@example.com", Role: models.RoleAdmin, IsActive: true},
		"clerk": {ID: "clerk", Name: "Clerk", Email: "clerk@example.com", Role: models.RoleClerk, IsActive: true},
		"old":   {ID: "old", Name: "Former", Email: "former@example.com", Role: models.RoleAdmin, IsActive: false},
	}}
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, nil, zap.NewNop())
	active := true
	users, pagination, err := svc.List(context.Background(), dto.UserQuery{Role: "Clerk", Active: &active, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	require.NotNil(t, repo.listFilter.Role)
	assert.Equal(t, models.RoleClerk, *repo.listFilter.Role)
	assert.True(t, *repo.listFilter.Active)
}

func TestUserServiceListRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nil, zap.NewNop())
	_, _, err := svc.List(context.Background(), dto.UserQuery{Role: "Janitor"})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Contains(t, appErr.Fields, "Role")
}

func TestUserServiceRegister(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := NewUserService(repo, nil, zap.NewNop())
	user, err := svc.Register(context.Background(), dto.RegisterUserRequest{Name: " Clerk ", Email: "USER@EXAMPLE.COM", Password: "secret1", Role: models.RoleClerk}, "actor", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, "Clerk", user.Name)
	assert.True(t, user.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestUserServiceRegisterDuplicateEmail(t *testing.T) {
	repo := soleAdminRepo()
	svc := NewUserService(repo, nil, zap.NewNop())
	_, err := svc.Register(context.Background(), dto.RegisterUserRequest{Name: "X", Email: "clerk@example.com", Password: "secret1", Role: models.RoleStaff}, "actor", models.RequestMeta{})
	requireAppError(t, err, appErrors.ErrConflict)
	assert.Zero(t, repo.writes)
}

func TestUserServiceRegisterValidation(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, nil, zap.NewNop())
	_, err := svc.Register(context.Background(), dto.RegisterUserRequest{Email: "nope", Password: "123", Role: "Root"}, "actor", models.RequestMeta{})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "is required", appErr.Fields["name"])
	assert.Equal(t, "must be a valid email address", appErr.Fields["email"])
	assert.Equal(t, "must be at least 6 characters", appErr.Fields["password"])
	assert.Equal(t, "must be one of: Admin, Clerk, Staff", appErr.Fields["role"])
}

func TestUserServiceSoleAdminProtected(t *testing.T) {
	ctx := context.Background()

	t.Run("demote", func(t *testing.T) {
		repo := soleAdminRepo()
		svc := NewUserService(repo, nil, zap.NewNop())
		_, err := svc.UpdateRole(ctx, "admin", dto.UpdateRoleRequest{Role: models.RoleClerk}, "other", models.RequestMeta{})
		requireAppError(t, err, appErrors.ErrLastAdmin)
		assert.Zero(t, repo.writes)
		assert.Equal(t, models.RoleAdmin, repo.users["admin"].Role)
	})

	t.Run("deactivate", func(t *testing.T) {
		repo := soleAdminRepo()
		svc := NewUserService(repo, nil, zap.NewNop())
		_, err := svc.ToggleStatus(ctx, "admin", dto.ToggleStatusRequest{}, "other", models.RequestMeta{})
		requireAppError(t, err, appErrors.ErrLastAdmin)
		assert.Zero(t, repo.writes)
		assert.True(t, repo.users["admin"].IsActive)
	})

	t.Run("delete", func(t *testing.T) {
		repo := soleAdminRepo()
		svc := NewUserService(repo, nil, zap.NewNop())
		err := svc.Delete(ctx, "admin", "other", models.RequestMeta{})
		requireAppError(t, err, appErrors.ErrLastAdmin)
		assert.Zero(t, repo.writes)
		assert.Contains(t, repo.users, "admin")
	})
}

func TestUserServiceSecondAdminAllowsDemotion(t *testing.T) {
	repo := soleAdminRepo()
	repo.users["admin2"] = &models.User{ID: "admin2", Email: "two@example.com", Role: models.RoleAdmin, IsActive: true}
	svc := NewUserService(repo, nil, zap.NewNop())

	user, err := svc.UpdateRole(context.Background(), "admin", dto.UpdateRoleRequest{Role: models.RoleStaff}, "admin2", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, user.Role)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserRole, repo.auditLogs[0].Action)
}

func TestUserServiceConcurrentDemotionRejectedAtWrite(t *testing.T) {
	repo := soleAdminRepo()
	repo.users["admin2"] = &models.User{ID: "admin2", Email: "two@example.com", Role: models.RoleAdmin, IsActive: true}
	repo.writeErr = appErrors.Clone(appErrors.ErrLastAdmin, "cannot remove the last active admin")
	svc := NewUserService(repo, nil, zap.NewNop())

	_, err := svc.ToggleStatus(context.Background(), "admin", dto.ToggleStatusRequest{}, "admin2", models.RequestMeta{})
	requireAppError(t, err, appErrors.ErrLastAdmin)

	err = svc.Delete(context.Background(), "admin", "admin2", models.RequestMeta{})
	requireAppError(t, err, appErrors.ErrLastAdmin)
	assert.Empty(t, repo.auditLogs)
	assert.Empty(t, repo.revoked)
}

func TestUserServiceInactiveAdminCanBeDeleted(t *testing.T) {
	repo := soleAdminRepo()
	svc := NewUserService(repo, nil, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "old", "admin", models.RequestMeta{}))
	assert.NotContains(t, repo.users, "old")
}

func TestUserServiceToggleStatusRevokesTokens(t *testing.T) {
	repo := soleAdminRepo()
	svc := NewUserService(repo, nil, zap.NewNop())

	user, err := svc.ToggleStatus(context.Background(), "clerk", dto.ToggleStatusRequest{}, "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Equal(t, []string{"clerk"}, repo.revoked)

	active := true
	user, err = svc.ToggleStatus(context.Background(), "clerk", dto.ToggleStatusRequest{IsActive: &active}, "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.Len(t, repo.revoked, 1)
}

func TestUserServiceToggleStatusNoChange(t *testing.T) {
	repo := soleAdminRepo()
	svc := NewUserService(repo, nil, zap.NewNop())

	active := true
	user, err := svc.ToggleStatus(context.Background(), "admin", dto.ToggleStatusRequest{IsActive: &active}, "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.Zero(t, repo.writes)
}

func TestUserServiceCannotDeleteSelf(t *testing.T) {
	repo := soleAdminRepo()
	repo.users["admin2"] = &models.User{ID: "admin2", Role: models.RoleAdmin, IsActive: true}
	svc := NewUserService(repo, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "admin", "admin", models.RequestMeta{})
	requireAppError(t, err, appErrors.ErrForbidden)
	assert.Zero(t, repo.writes)
}

func TestUserServiceNotFound(t *testing.T) {
	svc := NewUserService(soleAdminRepo(), nil, zap.NewNop())
	_, err := svc.UpdateRole(context.Background(), "missing", dto.UpdateRoleRequest{Role: models.RoleStaff}, "admin", models.RequestMeta{})
	requireAppError(t, err, appErrors.ErrNotFound)
}
