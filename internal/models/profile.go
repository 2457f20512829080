package models

import (
	"time"
)

// Profile roles
const (
	RoleAdmin    = "admin"
	RoleBusiness = "business"
	RoleRider    = "rider"
	RoleCustomer = "customer"
)

type Profile struct {
	ID          string    `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	Name        string    `db:"name" json:"name"`
	Role        string    `db:"role" json:"role"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	IsAvailable *bool     `db:"is_available" json:"is_available,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type CreateProfileRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Role  string `json:"role" validate:"required,oneof=admin business rider customer"`
	Phone string `json:"phone,omitempty" validate:"omitempty,min=10,max=15"`
}

type SetAvailabilityRequest struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

type ProfileResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Phone       *string `json:"phone,omitempty"`
	IsAvailable *bool   `json:"is_available,omitempty"`
}

func (p *Profile) ToResponse() *ProfileResponse {
	resp := &ProfileResponse{
		ID:    p.ID,
		Email: p.Email,
		Name:  p.Name,
		Role:  p.Role,
		Phone: p.Phone,
	}
	if p.Role == RoleRider {
		resp.IsAvailable = p.IsAvailable
	}
	return resp
}

// Available reports whether a rider profile can receive new requests.
// Non-rider profiles are never available.
func (p *Profile) Available() bool {
	return p.Role == RoleRider && p.IsAvailable != nil && *p.IsAvailable
}

func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleBusiness || role == RoleRider || role == RoleCustomer
}
