package middlewares

import (
	"net/http"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/pkg/cache"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JoinRateLimit 固定窗口限流，已登录用户按用户ID计数，否则按客户端 IP
// limit <= 0 时不限流；redis 不可用时放行
func JoinRateLimit(c cache.Cache, limit int, window time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if limit <= 0 || c == nil {
			ctx.Next()
			return
		}

		clientID := utils.OptionalUserID(ctx)
		if clientID == "" {
			clientID = "ip:" + ctx.ClientIP()
		}

		count, err := c.IncrWithTTL(ctx.Request.Context(), cache.GenerateJoinRateLimitKey(clientID), window)
		if err != nil {
			logger.Warn("JoinRateLimit: 限流计数失败，放行请求", zap.String("client", clientID), zap.Error(err))
			ctx.Next()
			return
		}
		if count > int64(limit) {
			xerr.AbortWithError(ctx, http.StatusTooManyRequests, xerr.TooManyRequestsCode, xerr.ErrTooManyRequests.Error())
			return
		}
		ctx.Next()
	}
}
