package middlewares

import (
	"net/http"
	"strings"

	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware 必须携带有效 JWT，匿名用户的 token 同样有效
func AuthMiddleware(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从请求头获取 Token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			xerr.AbortWithError(c, http.StatusUnauthorized, xerr.UnauthorizedCode, "Authorization header is required")
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			xerr.AbortWithError(c, http.StatusUnauthorized, xerr.UnauthorizedCode, "Invalid Authorization header format")
			return
		}

		// 2. 解析和验证 Token
		claims, err := utils.ParseToken(tokenString, cfg.SecretKey, cfg.Issuer)
		if err != nil {
			xerr.AbortWithError(c, http.StatusUnauthorized, xerr.TokenInvalidCode, xerr.ErrTokenInvalid.Error())
			return
		}

		// 3. 将用户信息存储到 Gin Context 中，以便后续 Handler 使用
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth 有合法 token 时写入用户信息，没有或无效时按未登录继续
// 加入页面同时服务已登录用户和访客
func OptionalAuth(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := utils.ParseToken(tokenString, cfg.SecretKey, cfg.Issuer); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// Token 格式通常是 "Bearer <token>"
func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, claims *utils.Claims) {
	c.Set(utils.ContextUserIDKey, claims.UserID)
	c.Set(utils.ContextIsAnonymousKey, claims.IsAnonymous)
	c.Set("username", claims.Username)
}
