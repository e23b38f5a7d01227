package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinio/clinio/internal/platform/apperr"
	"github.com/clinio/clinio/internal/platform/auth"
)

type Service struct {
	users  Repository
	tokens *auth.TokenIssuer
}

func NewService(users Repository, tokens *auth.TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login verifies credentials and issues a token pair. Bad credentials and
// inactive accounts get the same response so usernames cannot be probed.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*auth.TokenPair, *User, error) {
	if req.Username == "" || req.Password == "" {
		return nil, nil, apperr.Validation("username and password are required")
	}

	u, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, nil, apperr.Unauthorized("invalid credentials")
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, nil, apperr.Unauthorized("invalid credentials")
	}

	pair, err := s.tokens.Issue(u.ID.String(), u.Username, u.Role)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInternal, "issue tokens", err)
	}
	return pair, u, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The user is
// re-read so role changes and deactivation take effect on rotation.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil || !u.IsActive {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	pair, err := s.tokens.Issue(u.ID.String(), u.Username, u.Role)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "issue tokens", err)
	}
	return pair, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Username == "" || req.Password == "" || req.FullName == "" {
		return nil, apperr.Validation("username, password and full_name are required")
	}
	if !auth.ValidRole(req.Role) {
		return nil, apperr.Validation("invalid role: " + req.Role)
	}
	if existing, err := s.users.GetByUsername(ctx, req.Username); err == nil && existing != nil {
		return nil, apperr.Conflict("username already taken")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "hash password", err)
	}

	u := &User{
		Username:          req.Username,
		PasswordHash:      hash,
		FullName:          req.FullName,
		Role:              req.Role,
		Phone:             req.Phone,
		CertificateNumber: req.CertificateNumber,
		IsActive:          true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Update(ctx context.Context, u *User) error {
	if u.Role != "" && !auth.ValidRole(u.Role) {
		return apperr.Validation("invalid role: " + u.Role)
	}
	return s.users.Update(ctx, u)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return apperr.NotFound("user not found")
	}
	u.IsActive = false
	return s.users.Update(ctx, u)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// ChangePassword verifies the current password before setting the new one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error {
	if len(req.NewPassword) < 8 {
		return apperr.Validation("new password must be at least 8 characters")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return apperr.NotFound("user not found")
	}
	if !auth.CheckPassword(u.PasswordHash, req.OldPassword) {
		return apperr.Unauthorized("incorrect password")
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "hash password", err)
	}
	return s.users.UpdatePassword(ctx, id, hash)
}
