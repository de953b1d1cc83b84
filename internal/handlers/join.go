package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/services/share"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JoinHandler 分享链接落地页：先展示链接信息，再由用户选择加入方式
type JoinHandler struct {
	shareService share.ShareService
}

func NewJoinHandler(shareService share.ShareService) *JoinHandler {
	return &JoinHandler{shareService: shareService}
}

type JoinRequest struct {
	GuestName string `json:"guestName" binding:"max=64"`
	// Via 邀请邮件中的链接会带上 email
	Via string `json:"via"`
}

type joinPreview struct {
	State          string                   `json:"state"`
	Options        []share.JoinOption       `json:"options,omitempty"`
	Role           string                   `json:"role,omitempty"`
	Description    string                   `json:"description,omitempty"`
	Permissions    *models.SharePermissions `json:"permissions,omitempty"`
	ShareMode      models.ShareMode         `json:"shareMode,omitempty"`
	AllowAnonymous bool                     `json:"allowAnonymous"`
	ExpiresAt      *time.Time               `json:"expiresAt,omitempty"`
}

// @Summary 查看分享链接
// @Description 校验分享 token，返回链接授予的权限和当前用户可用的加入方式
// @Tags 加入
// @Produce json
// @Param token path string true "分享 token"
// @Success 200 {object} xerr.Response "链接有效"
// @Failure 404 {object} xerr.Response "链接不存在、已过期或已用尽"
// @Router /api/v1/join/{token} [get]
func (h *JoinHandler) Preview(c *gin.Context) {
	flow, ok := h.load(c)
	if !ok {
		return
	}

	st := flow.ShareToken()
	perms := st.Settings.Permissions
	xerr.Success(c, http.StatusOK, "分享链接有效", joinPreview{
		State:          flow.State().String(),
		Options:        flow.Options(utils.OptionalUserID(c)),
		Role:           share.PermissionLabel(perms),
		Description:    share.DescribePermissions(perms),
		Permissions:    &perms,
		ShareMode:      st.Settings.ShareMode,
		AllowAnonymous: st.Settings.AllowAnonymous,
		ExpiresAt:      st.ExpiresAt,
	})
}

// @Summary 通过分享链接加入清单
// @Description 已登录用户直接加入；未登录时提供 guestName 以访客身份加入，会返回新的会话 token
// @Tags 加入
// @Accept json
// @Produce json
// @Param token path string true "分享 token"
// @Param via query string false "链接来源，邀请邮件为 email"
// @Param request body JoinRequest false "访客信息"
// @Success 200 {object} xerr.Response "加入成功"
// @Failure 401 {object} xerr.Response "需要登录或提供访客名称"
// @Failure 403 {object} xerr.Response "链接不允许访客加入"
// @Failure 404 {object} xerr.Response "链接不存在、已过期或已用尽"
// @Failure 429 {object} xerr.Response "请求过于频繁"
// @Router /api/v1/join/{token} [post]
func (h *JoinHandler) Join(c *gin.Context) {
	var req JoinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
	}
	if req.Via == "" {
		req.Via = c.Query("via")
	}

	flow, ok := h.load(c)
	if !ok {
		return
	}

	userID := utils.OptionalUserID(c)
	guestName := strings.TrimSpace(req.GuestName)
	if userID == "" && guestName == "" {
		xerr.JSONResponse(c, http.StatusUnauthorized, xerr.AuthenticationRequiredCode, xerr.ErrAuthenticationRequired.Error(), gin.H{
			"state":   flow.State().String(),
			"options": flow.Options(""),
		})
		return
	}

	result, err := flow.JoinWith(c.Request.Context(), share.JoinLinkRequest{
		UserID:    userID,
		IsGuest:   c.GetBool(utils.ContextIsAnonymousKey),
		GuestName: guestName,
		Via:       parseVia(req.Via),
	})
	if err != nil {
		logger.Error("Join: 加入清单失败", zap.String("userID", userID), zap.Error(err))
		xerr.ErrorFrom(c, err, flow.Message())
		return
	}
	if !result.Success {
		httpStatus, code := joinFailureStatus(result.Error)
		xerr.JSONResponse(c, httpStatus, code, result.Error, gin.H{"state": flow.State().String()})
		return
	}

	xerr.Success(c, http.StatusOK, "加入清单成功", gin.H{
		"state":  flow.State().String(),
		"result": result,
	})
}

// load 校验 token，失败时已写入响应
func (h *JoinHandler) load(c *gin.Context) (*share.JoinFlow, bool) {
	flow := share.NewJoinFlow(h.shareService, c.Param("token"))
	if err := flow.Load(c.Request.Context()); err != nil {
		logger.Error("JoinHandler: 校验分享 token 失败", zap.Error(err))
		xerr.ErrorFrom(c, err, flow.Message())
		return nil, false
	}
	if flow.State() != share.JoinValid {
		xerr.JSONResponse(c, http.StatusNotFound, xerr.ShareTokenInvalidCode, flow.Message(), gin.H{
			"state": flow.State().String(),
		})
		return nil, false
	}
	return flow, true
}

func parseVia(v string) models.JoinMethod {
	if models.JoinMethod(strings.ToLower(v)) == models.JoinViaEmail {
		return models.JoinViaEmail
	}
	return models.JoinViaToken
}

// joinFailureStatus JoinResult.Error 是 xerr 中的错误文案
func joinFailureStatus(msg string) (int, int) {
	switch msg {
	case xerr.ErrShareTokenInvalid.Error():
		return http.StatusNotFound, xerr.ShareTokenInvalidCode
	case xerr.ErrAuthenticationRequired.Error():
		return http.StatusUnauthorized, xerr.AuthenticationRequiredCode
	case xerr.ErrGuestNotAllowed.Error():
		return http.StatusForbidden, xerr.GuestNotAllowedCode
	}
	return http.StatusBadRequest, xerr.JoinFailedCode
}
