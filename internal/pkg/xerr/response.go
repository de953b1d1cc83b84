package xerr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CodeError 结构体用于在服务层传递带有业务码的错误
// 它实现了 error 接口
type CodeError struct {
	Code int   // 业务错误码
	Err  error // 被包裹的底层错误
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return e.Err.Error()
}

// Unwrap 返回被包裹的底层错误，支持 errors.Unwrap
func (e *CodeError) Unwrap() error {
	return e.Err
}

// NewCodeError 创建一个 CodeError 实例
func NewCodeError(code int, err error) *CodeError {
	return &CodeError{Code: code, Err: err}
}

// Is 判断错误是否为指定的错误类型
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Response 是通用 JSON 响应结构
type Response struct {
	Code    int    `json:"code"`    // 业务状态码
	Message string `json:"message"` // 消息
	Data    any    `json:"data"`    // 响应数据
}

// JSONResponse 发送标准 JSON 响应
func JSONResponse(c *gin.Context, httpStatus int, code int, message string, data any) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success 成功响应
func Success(c *gin.Context, httpStatus int, message string, data any) {
	JSONResponse(c, httpStatus, SuccessCode, message, data)
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	JSONResponse(c, httpStatus, code, message, nil)
}

// AbortWithError 终止请求并发送错误响应
func AbortWithError(c *gin.Context, httpStatus int, code int, message string) {
	Error(c, httpStatus, code, message)
	c.Abort() // 终止后续的 HandlerFunc
}

// statusOf 将服务层错误映射为 HTTP 状态码和业务码
func statusOf(err error) (int, int) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return httpStatusForCode(ce.Code), ce.Code
	}
	switch {
	case errors.Is(err, ErrInvalidParams):
		return http.StatusBadRequest, InvalidParamsCode
	case errors.Is(err, ErrInvalidShareSettings):
		return http.StatusBadRequest, InvalidShareSettingsCode
	case errors.Is(err, ErrInvalidQRCode):
		return http.StatusBadRequest, InvalidQRCodeCode
	case errors.Is(err, ErrShareTokenInvalid):
		return http.StatusNotFound, ShareTokenInvalidCode
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized, AuthenticationRequiredCode
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, InvalidCredentialsCode
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized, UnauthorizedCode
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden, PermissionDeniedCode
	case errors.Is(err, ErrGuestNotAllowed):
		return http.StatusForbidden, GuestNotAllowedCode
	case errors.Is(err, ErrListNotFound):
		return http.StatusNotFound, ListNotFoundCode
	case errors.Is(err, ErrMemberNotFound):
		return http.StatusNotFound, MemberNotFoundCode
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, UserNotFoundCode
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict, UserAlreadyExistsCode
	case errors.Is(err, ErrEmailAlreadyExists):
		return http.StatusConflict, EmailAlreadyExistsCode
	case errors.Is(err, ErrAlreadyLinked):
		return http.StatusConflict, AlreadyLinkedCode
	case errors.Is(err, ErrConcurrentUpdate):
		return http.StatusConflict, ConcurrentUpdateCode
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, TooManyRequestsCode
	case errors.Is(err, ErrMailError):
		return http.StatusBadGateway, MailErrorCode
	}
	return http.StatusInternalServerError, InternalServerErrorCode
}

func httpStatusForCode(code int) int {
	switch {
	case code >= 50000:
		return http.StatusInternalServerError
	case code >= 42900:
		return http.StatusTooManyRequests
	case code >= 40900:
		return http.StatusConflict
	case code >= 40400:
		return http.StatusNotFound
	case code >= 40300:
		return http.StatusForbidden
	case code >= 40100:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

// ErrorFrom 根据错误类型返回统一响应，内部错误不暴露细节
func ErrorFrom(c *gin.Context, err error, fallbackMsg string) {
	httpStatus, code := statusOf(err)
	if httpStatus == http.StatusInternalServerError {
		Error(c, httpStatus, code, fallbackMsg)
		return
	}
	Error(c, httpStatus, code, err.Error())
}
