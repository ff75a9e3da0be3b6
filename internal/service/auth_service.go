package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todoapi/internal/auth"
	"todoapi/internal/errors"
	"todoapi/internal/model"
	"todoapi/internal/repository"
)

// AuthService handles registration and login.
type AuthService interface {
	Register(ctx context.Context, email, name string) (token string, user *model.User, err error)
	Login(ctx context.Context, email, password string) (token string, user *model.User, err error)
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// Register creates a new user and issues a token for it.
func (s *authService) Register(ctx context.Context, email, name string) (string, *model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return "", nil, errors.ErrEmailTaken
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return "", nil, fmt.Errorf("check user existence: %w", err)
	}

	user := &model.User{
		ID:    uuid.New(),
		Email: email,
		Name:  name,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Two registrations can race past the pre-check; the unique index
		// on email settles it.
		if err == gorm.ErrDuplicatedKey {
			return "", nil, errors.ErrEmailTaken
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// Login issues a token for an existing user.
//
// INSECURE BY CONSTRUCTION: the password is accepted but never verified.
// Registration stores no credential, so there is nothing to compare against;
// any password works for a known email. Kept deliberately to preserve the
// observed contract.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil, errors.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}
