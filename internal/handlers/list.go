package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/services/lists"
	"github.com/3Eeeecho/go-grocerylist/internal/services/share"
	"github.com/gin-gonic/gin"
)

type ListHandler struct {
	listService  lists.ListService
	shareService share.ShareService
}

func NewListHandler(listService lists.ListService, shareService share.ShareService) *ListHandler {
	return &ListHandler{
		listService:  listService,
		shareService: shareService,
	}
}

type CreateListRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

type JoinQRRequest struct {
	QRData string `json:"qrData" binding:"required"`
}

// @Summary 创建清单
// @Tags 清单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data body CreateListRequest true "清单名称"
// @Success 200 {object} xerr.Response "创建成功"
// @Router /api/v1/lists [post]
func (h *ListHandler) CreateList(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req CreateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		return
	}

	list, err := h.listService.CreateList(c.Request.Context(), userID, req.Name)
	if err != nil {
		xerr.ErrorFrom(c, err, "创建清单失败")
		return
	}
	xerr.Success(c, http.StatusOK, "清单创建成功", list)
}

// @Summary 我的清单
// @Description 返回自己创建的以及通过分享加入的清单
// @Tags 清单
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response "清单列表"
// @Router /api/v1/lists [get]
func (h *ListHandler) ListUserLists(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	result, err := h.listService.ListUserLists(c.Request.Context(), userID)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取清单列表失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取清单列表成功", result)
}

// @Summary 清单详情
// @Tags 清单
// @Produce json
// @Security BearerAuth
// @Param list_id path string true "清单 ID"
// @Success 200 {object} xerr.Response "清单详情"
// @Failure 403 {object} xerr.Response "无权访问"
// @Failure 404 {object} xerr.Response "清单不存在"
// @Router /api/v1/lists/{list_id} [get]
func (h *ListHandler) GetList(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	list, err := h.listService.GetList(c.Request.Context(), c.Param("list_id"), userID)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取清单失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取清单成功", list)
}

// @Summary 扫码加入清单
// @Description 解析清单二维码中的 /list/{id} 并以编辑者身份加入
// @Tags 清单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data body JoinQRRequest true "二维码内容"
// @Success 200 {object} xerr.Response "加入成功，返回清单 ID"
// @Failure 400 {object} xerr.Response "二维码无法识别"
// @Failure 404 {object} xerr.Response "清单不存在"
// @Router /api/v1/qr/join [post]
func (h *ListHandler) JoinViaQR(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req JoinQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		return
	}

	listID, err := h.shareService.JoinViaQR(c.Request.Context(), req.QRData, userID)
	if err != nil {
		xerr.ErrorFrom(c, err, "扫码加入清单失败")
		return
	}
	xerr.Success(c, http.StatusOK, "加入清单成功", gin.H{"listId": listID})
}
