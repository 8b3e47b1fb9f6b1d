package dto

import "github.com/noah-isme/docket-api/internal/models"

// RegisterUserRequest creates an account.
type RegisterUserRequest struct {
	Name     string          `json:"name" validate:"required,max=150"`
	Email    string          `json:"email" validate:"required,email,max=255"`
	Password string          `json:"password" validate:"required,min=6,max=72"`
	Role     models.UserRole `json:"role" validate:"required,oneof=Admin Clerk Staff"`
	IsActive *bool           `json:"isActive"`
}

// UpdateRoleRequest changes an account's role.
type UpdateRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=Admin Clerk Staff"`
}

// ToggleStatusRequest sets an account's status explicitly. An empty body flips
// the current value.
type ToggleStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

// UserQuery holds the query string accepted by the account listing.
type UserQuery struct {
	Role      string `form:"role" validate:"omitempty,oneof=Admin Clerk Staff"`
	Active    *bool  `form:"active"`
	Search    string `form:"search"`
	Page      int    `form:"page" validate:"omitempty,gte=1"`
	PageSize  int    `form:"page_size" validate:"omitempty,gte=1,lte=100"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}
