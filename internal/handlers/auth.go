package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/services/admin"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService admin.AuthService
}

func NewAuthHandler(authService admin.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=255"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// LoginRequest 登录请求结构体
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // 可以是用户名或邮箱
	Password   string `json:"password" binding:"required"`
}

type AnonymousRequest struct {
	DisplayName string `json:"displayName" binding:"max=64"`
}

// @Summary 用户注册
// @Description 用户注册接口
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body RegisterRequest true "注册信息"
// @Success 200 {object} xerr.Response "注册成功"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 409 {object} xerr.Response "用户名或邮箱已存在"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		return
	}

	user, err := h.authService.RegisterUser(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		xerr.ErrorFrom(c, err, "Failed to register user")
		return
	}

	xerr.Success(c, http.StatusOK, "User registered successfully", user)
}

// @Summary 用户登录
// @Description 用户名或邮箱登录，返回 JWT
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body LoginRequest true "登录信息"
// @Success 200 {object} xerr.Response "登录成功，返回token"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 401 {object} xerr.Response "用户名或密码错误"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		return
	}

	token, err := h.authService.LoginUser(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		xerr.ErrorFrom(c, err, "Failed to login")
		return
	}

	xerr.Success(c, http.StatusOK, "Login successful", gin.H{"token": token})
}

// @Summary 匿名登录
// @Description 创建匿名账号并返回会话 token，可稍后绑定用户名密码
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body AnonymousRequest false "显示名称"
// @Success 200 {object} xerr.Response "匿名登录成功"
// @Router /api/v1/auth/anonymous [post]
func (h *AuthHandler) SignInAnonymously(c *gin.Context) {
	var req AnonymousRequest
	// 请求体可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
	}

	user, token, err := h.authService.SignInAnonymously(c.Request.Context(), req.DisplayName)
	if err != nil {
		xerr.ErrorFrom(c, err, "Failed to sign in anonymously")
		return
	}

	xerr.Success(c, http.StatusOK, "Signed in anonymously", gin.H{"user": user, "token": token})
}

// @Summary 绑定登录凭据
// @Description 匿名账号绑定用户名密码，用户 ID 与已加入的清单保持不变
// @Tags 用户认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data body RegisterRequest true "凭据"
// @Success 200 {object} xerr.Response "绑定成功，返回新 token"
// @Failure 409 {object} xerr.Response "已绑定或用户名已存在"
// @Router /api/v1/auth/link [post]
func (h *AuthHandler) LinkCredentials(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		return
	}

	user, token, err := h.authService.LinkCredentials(c.Request.Context(), userID, req.Username, req.Password, req.Email)
	if err != nil {
		xerr.ErrorFrom(c, err, "Failed to link credentials")
		return
	}

	xerr.Success(c, http.StatusOK, "Credentials linked", gin.H{"user": user, "token": token})
}
