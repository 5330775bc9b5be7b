package service

import (
	"context"
	"errors"

	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")

type UserService interface {
	// EnsureUser creates the local user row for an authenticated identity on first sight.
	EnsureUser(ctx context.Context, id, email string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) EnsureUser(ctx context.Context, id, email string) (*model.User, error) {
	if id == "" {
		return nil, ErrUnauthorized
	}
	return s.userRepo.EnsureUser(ctx, id, email)
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
