package lists

import (
	"context"
	"strings"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/repositories"
	"go.uber.org/zap"
)

// ListService 清单的最小读写面，以及分享管理接口需要的归属校验
type ListService interface {
	CreateList(ctx context.Context, ownerID, name string) (*models.GroceryList, error)
	// GetList 所有者、成员或旧版名单中的用户可见
	GetList(ctx context.Context, listID, userID string) (*models.GroceryList, error)
	ListUserLists(ctx context.Context, userID string) ([]models.GroceryList, error)
	// RequireOwner 清单不存在返回 ErrListNotFound，非所有者返回 ErrPermissionDenied
	RequireOwner(ctx context.Context, listID, userID string) (*models.GroceryList, error)
}

type listService struct {
	listRepo   repositories.ListRepository
	memberRepo repositories.ShareMemberRepository
}

var _ ListService = (*listService)(nil)

func NewListService(listRepo repositories.ListRepository, memberRepo repositories.ShareMemberRepository) ListService {
	return &listService{
		listRepo:   listRepo,
		memberRepo: memberRepo,
	}
}

func (s *listService) CreateList(ctx context.Context, ownerID, name string) (*models.GroceryList, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return nil, xerr.ErrInvalidParams
	}

	list := &models.GroceryList{
		Name:         name,
		OwnerID:      ownerID,
		AllowedUsers: []string{ownerID},
	}
	if err := s.listRepo.Create(ctx, list); err != nil {
		logger.Error("CreateList: 创建清单失败", zap.String("ownerID", ownerID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

func (s *listService) GetList(ctx context.Context, listID, userID string) (*models.GroceryList, error) {
	list, err := s.find(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.OwnerID == userID || list.HasAllowedUser(userID) {
		return list, nil
	}

	member, err := s.memberRepo.FindByListAndUser(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, xerr.ErrPermissionDenied
	}
	return list, nil
}

func (s *listService) ListUserLists(ctx context.Context, userID string) ([]models.GroceryList, error) {
	return s.listRepo.FindAccessibleByUser(ctx, userID)
}

func (s *listService) RequireOwner(ctx context.Context, listID, userID string) (*models.GroceryList, error) {
	list, err := s.find(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.OwnerID != userID {
		logger.Warn("RequireOwner: 非所有者尝试管理分享",
			zap.String("listID", listID),
			zap.String("userID", userID))
		return nil, xerr.ErrPermissionDenied
	}
	return list, nil
}

func (s *listService) find(ctx context.Context, listID string) (*models.GroceryList, error) {
	list, err := s.listRepo.FindByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, xerr.ErrListNotFound
	}
	return list, nil
}
