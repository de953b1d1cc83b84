package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/services/admin"
)

type UserHandler struct {
	userService admin.UserService
}

func NewUserHandler(userService admin.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// profileView 当前用户资料，访客账号会提示可以绑定凭据保留清单
type profileView struct {
	*models.User
	CanLinkCredentials bool `json:"canLinkCredentials"`
}

// GetUserProfile 返回当前会话对应的账号，访客加入清单后用它确认身份
// @Summary 当前账号
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response "data 为账号资料，访客账号 canLinkCredentials=true"
// @Failure 401 {object} xerr.Response "未登录"
// @Failure 404 {object} xerr.Response "账号不存在"
// @Router /api/v1/users/me [get]
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		logger.Warn("GetUserProfile: 查询账号失败", zap.String("userID", userID), zap.Error(err))
		xerr.ErrorFrom(c, err, "查询账号失败")
		return
	}

	xerr.Success(c, http.StatusOK, "ok", profileView{User: user, CanLinkCredentials: user.IsAnonymous})
}
