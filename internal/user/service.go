// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/vodkaclient/keyserver/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrUsernameTaken      = errors.New("username already exists")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Register(
	ctx context.Context,
	username, password string,
) (*User, error) {
	passwordHash, err := core.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: passwordHash,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	return user, nil
}

// Login verifies credentials without revealing which half failed. Unknown
// usernames still pay the hash cost so response timing stays flat.
func (s *Service) Login(
	ctx context.Context,
	username, password string,
) (*User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention
			_, _ = core.VerifyPasswordTimingSafe(password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPasswordTimingSafe(password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetByID(ctx context.Context, uid int64) (*User, error) {
	return s.repo.GetByID(ctx, uid)
}

func (s *Service) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, uid int64) error {
	return s.repo.Delete(ctx, uid)
}

func (s *Service) BindHWID(
	ctx context.Context,
	uid int64,
	hwid string,
) (bool, error) {
	return s.repo.BindHWID(ctx, uid, hwid)
}

func (s *Service) ResetHWID(ctx context.Context, uid int64) error {
	return s.repo.ResetHWID(ctx, uid)
}
