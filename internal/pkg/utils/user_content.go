package utils

import (
	"net/http"

	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey      = "userID"
	ContextIsAnonymousKey = "isAnonymous"
)

// GetUserIDFromContext 从 Gin 上下文中获取并验证用户ID
// 如果获取失败或类型不正确，会中止请求并返回错误
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ContextUserIDKey)
	if !exists {
		xerr.AbortWithError(c, http.StatusUnauthorized, xerr.UnauthorizedCode, xerr.ErrUnauthorized.Error())
		return "", false
	}
	currentUserID, ok := userID.(string)
	if !ok || currentUserID == "" {
		xerr.AbortWithError(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "Invalid user ID type in context")
		return "", false
	}
	return currentUserID, true
}

// OptionalUserID 读取可选认证写入的用户ID，未登录时返回空字符串
func OptionalUserID(c *gin.Context) string {
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
