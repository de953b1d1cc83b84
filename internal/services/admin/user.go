package admin

import (
	"context"
	"fmt"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/repositories"
	"go.uber.org/zap"
)

type UserService interface {
	GetUserProfile(ctx context.Context, userID string) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
}

var _ UserService = (*userService)(nil)

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetUserProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		logger.Error("GetUserProfile: Error retrieving user from DB",
			zap.String("userID", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve user profile: %w", err)
	}
	if user == nil { // userRepo.GetUserByID returns nil, nil if not found
		logger.Warn("GetUserProfile: User not found", zap.String("userID", userID))
		return nil, xerr.ErrUserNotFound
	}
	return user, nil
}
