package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/pkg/database"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/validation"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CountActiveAdmins(ctx context.Context) (int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles account management. Every change that could leave the
// system without an active Admin is rejected before anything is written.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, query dto.UserQuery) ([]models.User, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationError(err, "invalid user query")
	}
	filter := models.UserFilter{
		Active:    query.Active,
		Search:    strings.TrimSpace(query.Search),
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filter.Role = &role
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, repoError(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, pageOf(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, repoError(err, "failed to load user")
	}
	return user, nil
}

// Register creates an account. Accounts are active unless IsActive is false.
func (s *UserService) Register(ctx context.Context, req dto.RegisterUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, repoError(err, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		IsActive:     req.IsActive == nil || *req.IsActive,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, repoError(err, "failed to create user")
	}

	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionUserCreate,
		Resource:   models.AuditResourceUsers,
		ResourceID: &user.ID,
		NewValues:  auditJSON(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role, "isActive": user.IsActive}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return user, nil
}

// UpdateRole changes an account's role.
func (s *UserService) UpdateRole(ctx context.Context, id string, req dto.UpdateRoleRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid role payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == req.Role {
		return user, nil
	}
	if user.IsActiveAdmin() && req.Role != models.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	oldRole := user.Role
	user.Role = req.Role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.updateError(err)
	}
	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionUserRole,
		Resource:   models.AuditResourceUsers,
		ResourceID: &user.ID,
		OldValues:  auditJSON(map[string]interface{}{"role": oldRole}),
		NewValues:  auditJSON(map[string]interface{}{"role": user.Role}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return user, nil
}

// ToggleStatus activates or deactivates an account. Without an explicit
// value the current status is flipped. Deactivation revokes refresh tokens.
func (s *UserService) ToggleStatus(ctx context.Context, id string, req dto.ToggleStatusRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	target := !user.IsActive
	if req.IsActive != nil {
		target = *req.IsActive
	}
	if target == user.IsActive {
		return user, nil
	}
	if user.IsActiveAdmin() && !target {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	user.IsActive = target
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.updateError(err)
	}
	if !target {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionUserStatus,
		Resource:   models.AuditResourceUsers,
		ResourceID: &user.ID,
		OldValues:  auditJSON(map[string]interface{}{"isActive": !target}),
		NewValues:  auditJSON(map[string]interface{}{"isActive": target}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return user, nil
}

// Delete permanently removes an account and its refresh tokens. Admins cannot
// delete themselves.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.IsActiveAdmin() {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.updateError(err)
	}
	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionUserDelete,
		Resource:   models.AuditResourceUsers,
		ResourceID: &user.ID,
		OldValues:  auditJSON(map[string]interface{}{"email": user.Email, "role": user.Role, "isActive": user.IsActive}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return nil
}

// ensureAnotherAdmin fails unless at least two active admins exist, so that
// removing one still leaves an active Admin.
func (s *UserService) ensureAnotherAdmin(ctx context.Context) error {
	count, err := s.repo.CountActiveAdmins(ctx)
	if err != nil {
		return repoError(err, "failed to count active admins")
	}
	if count <= 1 {
		return appErrors.Clone(appErrors.ErrLastAdmin, "cannot remove the last active admin")
	}
	return nil
}

func (s *UserService) updateError(err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case errors.As(err, &appErr):
		return appErr
	}
	return repoError(err, "failed to write user")
}
