package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/repositories"
	"go.uber.org/zap"
)

type AuthService interface {
	RegisterUser(ctx context.Context, username, password, email string) (*models.User, error)
	LoginUser(ctx context.Context, identifier, password string) (string, error)
	// SignInAnonymously 创建匿名用户并签发会话 token，访客加入清单时使用
	SignInAnonymously(ctx context.Context, displayName string) (*models.User, string, error)
	// LinkCredentials 为匿名用户绑定用户名密码，用户 ID 保持不变
	LinkCredentials(ctx context.Context, userID, username, password, email string) (*models.User, string, error)
}

type authService struct {
	userRepo repositories.UserRepository
	cfg      config.JWTConfig
}

// 确保authService实现了AuthService的方法
var _ AuthService = (*authService)(nil)

func NewAuthService(userRepo repositories.UserRepository, cfg config.JWTConfig) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

func (s *authService) RegisterUser(ctx context.Context, username, password, email string) (*models.User, error) {
	if err := s.checkAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	//哈希密码
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     &username,
		PasswordHash: hashedPassword,
		DisplayName:  username,
		Status:       1,
	}
	if email != "" {
		user.Email = &email
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user in database: %w", err)
	}

	logger.Info("RegisterUser: 用户注册成功", zap.String("userID", user.ID), zap.String("username", username))
	return user, nil
}

func (s *authService) checkAvailable(ctx context.Context, username, email string) error {
	existing, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to check username existence: %w", err)
	}
	if existing != nil {
		return xerr.ErrUserAlreadyExists
	}
	if email == "" {
		return nil
	}
	existing, err = s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check email existence: %w", err)
	}
	if existing != nil {
		return xerr.ErrEmailAlreadyExists
	}
	return nil
}

func (s *authService) LoginUser(ctx context.Context, identifier, password string) (string, error) {
	// 先按用户名查找，找不到再按邮箱查找
	user, err := s.userRepo.GetUserByUsername(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("failed to get user by username: %w", err)
	}
	if user == nil {
		user, err = s.userRepo.GetUserByEmail(ctx, identifier)
		if err != nil {
			return "", fmt.Errorf("failed to get user by email: %w", err)
		}
	}
	if user == nil || user.PasswordHash == "" {
		return "", xerr.ErrInvalidCredentials
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		logger.Warn("LoginUser: 密码错误", zap.String("userID", user.ID))
		return "", xerr.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) SignInAnonymously(ctx context.Context, displayName string) (*models.User, string, error) {
	user := &models.User{
		DisplayName: strings.TrimSpace(displayName),
		IsAnonymous: true,
		Status:      1,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create anonymous user: %w", err)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	logger.Info("SignInAnonymously: 匿名用户已创建", zap.String("userID", user.ID))
	return user, token, nil
}

func (s *authService) LinkCredentials(ctx context.Context, userID, username, password, email string) (*models.User, string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, "", xerr.ErrUserNotFound
	}
	if !user.IsAnonymous {
		return nil, "", xerr.ErrAlreadyLinked
	}
	if err := s.checkAvailable(ctx, username, email); err != nil {
		return nil, "", err
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.Username = &username
	if email != "" {
		user.Email = &email
	}
	user.PasswordHash = hashedPassword
	user.IsAnonymous = false
	if user.DisplayName == "" {
		user.DisplayName = username
	}
	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to link credentials: %w", err)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	logger.Info("LinkCredentials: 匿名账号已升级", zap.String("userID", user.ID))
	return user, token, nil
}

// issue 调用 utils 包中的 GenerateToken 生成 JWT
func (s *authService) issue(user *models.User) (string, error) {
	username := ""
	if user.Username != nil {
		username = *user.Username
	}
	token, err := utils.GenerateToken(user.ID, username, user.IsAnonymous, s.cfg.SecretKey, s.cfg.Issuer, s.cfg.ExpiresIn)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}
