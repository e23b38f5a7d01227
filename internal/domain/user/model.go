package user

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table. PasswordHash never leaves the API.
type User struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Username          string    `db:"username" json:"username"`
	PasswordHash      string    `db:"password_hash" json:"-"`
	FullName          string    `db:"full_name" json:"full_name"`
	Role              string    `db:"role" json:"role"`
	Phone             *string   `db:"phone" json:"phone,omitempty"`
	CertificateNumber *string   `db:"certificate_number" json:"certificate_number,omitempty"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// CreateUserRequest is the admin user creation body.
type CreateUserRequest struct {
	Username          string  `json:"username"`
	Password          string  `json:"password"`
	FullName          string  `json:"full_name"`
	Role              string  `json:"role"`
	Phone             *string `json:"phone,omitempty"`
	CertificateNumber *string `json:"certificate_number,omitempty"`
}

// ChangePasswordRequest is the body of POST /users/me/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}
