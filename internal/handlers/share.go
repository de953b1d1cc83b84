package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/services/lists"
	"github.com/3Eeeecho/go-grocerylist/internal/services/share"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ShareHandler 清单所有者管理分享链接和成员
type ShareHandler struct {
	shareService share.ShareService
	listService  lists.ListService
}

func NewShareHandler(shareService share.ShareService, listService lists.ListService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		listService:  listService,
	}
}

// CreateShareRequest 未填写的字段使用默认分享设置
type CreateShareRequest struct {
	Preset         string                   `json:"preset"` // viewer / editor / admin，与 permissions 同时提供时以 permissions 为准
	Permissions    *models.SharePermissions `json:"permissions"`
	ExpiresIn      models.ExpiresIn         `json:"expiresIn"`
	ShareMode      models.ShareMode         `json:"shareMode"`
	SelectedItems  []string                 `json:"selectedItems"`
	AllowAnonymous *bool                    `json:"allowAnonymous"`
	MaxUses        *int                     `json:"maxUses"`
}

func (r *CreateShareRequest) settings() (models.ShareSettings, error) {
	s := share.DefaultSettings()
	if r.Preset != "" {
		p, ok := share.PresetPermissions(r.Preset)
		if !ok {
			return s, xerr.ErrInvalidShareSettings
		}
		s.Permissions = p
	}
	if r.Permissions != nil {
		s.Permissions = *r.Permissions
	}
	if r.ExpiresIn != "" {
		s.ExpiresIn = r.ExpiresIn
	}
	if r.ShareMode != "" {
		s.ShareMode = r.ShareMode
	}
	if r.SelectedItems != nil {
		s.SelectedItems = datatypes.NewJSONSlice(r.SelectedItems)
	}
	if r.AllowAnonymous != nil {
		s.AllowAnonymous = *r.AllowAnonymous
	}
	s.MaxUses = r.MaxUses
	return s, nil
}

type ShareInviteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// UpdatePermissionsRequest preset 和 permissions 二选一
type UpdatePermissionsRequest struct {
	Preset      string                   `json:"preset"`
	Permissions *models.SharePermissions `json:"permissions"`
}

type memberView struct {
	models.ShareMember
	Role string `json:"role"`
}

// requireOwner 校验当前用户是清单所有者，失败时已写入响应
func (h *ShareHandler) requireOwner(c *gin.Context) (string, bool) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return "", false
	}
	if _, err := h.listService.RequireOwner(c.Request.Context(), c.Param("list_id"), userID); err != nil {
		xerr.ErrorFrom(c, err, "校验清单权限失败")
		return "", false
	}
	return userID, true
}

// CreateShare handles creation of a new share link.
// @Summary 创建分享链接
// @Description 为清单创建分享 token，可设置权限、有效期、分享范围和使用次数
// @Tags 分享
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Param request body CreateShareRequest false "分享设置"
// @Success 200 {object} xerr.Response "分享链接创建成功"
// @Failure 400 {object} xerr.Response "分享设置不合法"
// @Failure 403 {object} xerr.Response "只有清单所有者可以分享"
// @Failure 404 {object} xerr.Response "清单不存在"
// @Router /api/v1/lists/{list_id}/shares [post]
func (h *ShareHandler) CreateShare(c *gin.Context) {
	userID, ok := h.requireOwner(c)
	if !ok {
		return
	}

	var req CreateShareRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
			return
		}
	}
	settings, err := req.settings()
	if err != nil {
		xerr.ErrorFrom(c, err, "创建分享链接失败")
		return
	}

	token, err := h.shareService.CreateShareToken(c.Request.Context(), c.Param("list_id"), userID, settings)
	if err != nil {
		logger.Warn("CreateShare: 创建分享链接失败", zap.String("listID", c.Param("list_id")), zap.Error(err))
		xerr.ErrorFrom(c, err, "创建分享链接失败")
		return
	}

	xerr.Success(c, http.StatusOK, "分享链接创建成功", gin.H{
		"token":    token,
		"shareUrl": h.shareService.GenerateShareURL(token),
		"role":     share.PermissionLabel(settings.Permissions),
	})
}

// @Summary 分享链接列表
// @Description 列出清单当前有效的分享 token，按创建时间倒序
// @Tags 分享
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Success 200 {object} xerr.Response "分享链接列表"
// @Router /api/v1/lists/{list_id}/shares [get]
func (h *ShareHandler) ListShares(c *gin.Context) {
	if _, ok := h.requireOwner(c); !ok {
		return
	}

	tokens, err := h.shareService.ListShareTokens(c.Request.Context(), c.Param("list_id"))
	if err != nil {
		xerr.ErrorFrom(c, err, "获取分享链接失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取分享链接成功", tokens)
}

// @Summary 停用分享链接
// @Tags 分享
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Param token path string true "分享 token"
// @Success 200 {object} xerr.Response "已停用"
// @Failure 404 {object} xerr.Response "分享链接不存在或已失效"
// @Router /api/v1/lists/{list_id}/shares/{token} [delete]
func (h *ShareHandler) RevokeShare(c *gin.Context) {
	if _, ok := h.requireOwner(c); !ok {
		return
	}
	token := c.Param("token")
	if !h.tokenBelongsToList(c, token) {
		return
	}

	if err := h.shareService.DeactivateToken(c.Request.Context(), token); err != nil {
		xerr.ErrorFrom(c, err, "停用分享链接失败")
		return
	}
	xerr.Success(c, http.StatusOK, "分享链接已停用", nil)
}

// @Summary 发送分享邀请邮件
// @Description 邮件中的链接加入后成员来源记为 email
// @Tags 分享
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Param token path string true "分享 token"
// @Param request body ShareInviteRequest true "收件人"
// @Success 200 {object} xerr.Response "邀请已发送"
// @Failure 502 {object} xerr.Response "邮件发送失败"
// @Router /api/v1/lists/{list_id}/shares/{token}/invite [post]
func (h *ShareHandler) SendInvite(c *gin.Context) {
	if _, ok := h.requireOwner(c); !ok {
		return
	}
	var req ShareInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		return
	}
	token := c.Param("token")
	if !h.tokenBelongsToList(c, token) {
		return
	}

	if err := h.shareService.SendShareInvite(c.Request.Context(), token, req.Email); err != nil {
		logger.Error("SendInvite: 发送邀请失败", zap.String("listID", c.Param("list_id")), zap.Error(err))
		xerr.ErrorFrom(c, err, "发送邀请失败")
		return
	}
	xerr.Success(c, http.StatusOK, "邀请已发送", nil)
}

func (h *ShareHandler) tokenBelongsToList(c *gin.Context, token string) bool {
	tokens, err := h.shareService.ListShareTokens(c.Request.Context(), c.Param("list_id"))
	if err != nil {
		xerr.ErrorFrom(c, err, "获取分享链接失败")
		return false
	}
	for _, st := range tokens {
		if st.Token == token {
			return true
		}
	}
	xerr.Error(c, http.StatusNotFound, xerr.ShareTokenInvalidCode, xerr.ErrShareTokenInvalid.Error())
	return false
}

// @Summary 清单成员
// @Description 清单的所有者和成员都可以查看，按加入时间排序
// @Tags 成员
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Success 200 {object} xerr.Response "成员列表"
// @Router /api/v1/lists/{list_id}/members [get]
func (h *ShareHandler) ListMembers(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	listID := c.Param("list_id")
	if _, err := h.listService.GetList(c.Request.Context(), listID, userID); err != nil {
		xerr.ErrorFrom(c, err, "获取成员失败")
		return
	}

	members, err := h.shareService.GetListMembers(c.Request.Context(), listID)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取成员失败")
		return
	}
	views := make([]memberView, 0, len(members))
	for _, m := range members {
		views = append(views, memberView{ShareMember: m, Role: share.PermissionLabel(m.Permissions)})
	}
	xerr.Success(c, http.StatusOK, "获取成员成功", views)
}

// @Summary 我在清单中的权限
// @Tags 成员
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Success 200 {object} xerr.Response "成员记录"
// @Failure 404 {object} xerr.Response "不是该清单的成员"
// @Router /api/v1/lists/{list_id}/members/me [get]
func (h *ShareHandler) MyAccess(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	member, err := h.shareService.GetUserListAccess(c.Request.Context(), c.Param("list_id"), userID)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取权限失败")
		return
	}
	if member == nil {
		xerr.Error(c, http.StatusNotFound, xerr.MemberNotFoundCode, xerr.ErrMemberNotFound.Error())
		return
	}
	xerr.Success(c, http.StatusOK, "获取权限成功", memberView{ShareMember: *member, Role: share.PermissionLabel(member.Permissions)})
}

// @Summary 修改成员权限
// @Description 只修改成员记录，已签发的分享 token 不受影响
// @Tags 成员
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Param user_id path string true "成员用户 ID"
// @Param request body UpdatePermissionsRequest true "新权限"
// @Success 200 {object} xerr.Response "已更新"
// @Failure 404 {object} xerr.Response "成员不存在"
// @Router /api/v1/lists/{list_id}/members/{user_id} [put]
func (h *ShareHandler) UpdateMember(c *gin.Context) {
	if _, ok := h.requireOwner(c); !ok {
		return
	}
	var req UpdatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		return
	}

	var perms models.SharePermissions
	switch {
	case req.Permissions != nil:
		perms = *req.Permissions
	case req.Preset != "":
		p, ok := share.PresetPermissions(req.Preset)
		if !ok {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "未知的权限预设: "+req.Preset)
			return
		}
		perms = p
	default:
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "preset 或 permissions 必须提供一个")
		return
	}

	if err := h.shareService.UpdateUserPermissions(c.Request.Context(), c.Param("list_id"), c.Param("user_id"), perms); err != nil {
		xerr.ErrorFrom(c, err, "修改成员权限失败")
		return
	}
	xerr.Success(c, http.StatusOK, "成员权限已更新", gin.H{"permissions": perms, "role": share.PermissionLabel(perms)})
}

// @Summary 移除成员
// @Description 所有者可以移除任意成员，成员可以移除自己 (退出清单)
// @Tags 成员
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Param user_id path string true "成员用户 ID"
// @Success 200 {object} xerr.Response "已移除"
// @Failure 403 {object} xerr.Response "无权移除"
// @Router /api/v1/lists/{list_id}/members/{user_id} [delete]
func (h *ShareHandler) RemoveMember(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	listID, target := c.Param("list_id"), c.Param("user_id")

	if target != userID {
		if _, err := h.listService.RequireOwner(c.Request.Context(), listID, userID); err != nil {
			xerr.ErrorFrom(c, err, "移除成员失败")
			return
		}
	}
	list, err := h.listService.GetList(c.Request.Context(), listID, userID)
	if err != nil {
		xerr.ErrorFrom(c, err, "移除成员失败")
		return
	}
	// 所有者不能被移出自己的清单
	if target == list.OwnerID {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "不能移除清单所有者")
		return
	}

	if err := h.shareService.RemoveUserAccess(c.Request.Context(), listID, target); err != nil {
		xerr.ErrorFrom(c, err, "移除成员失败")
		return
	}
	xerr.Success(c, http.StatusOK, "成员已移除", nil)
}
