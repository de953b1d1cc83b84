package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams        = errors.New("无效的请求参数")
	ErrInvalidShareSettings = errors.New("分享设置不合法")

	// 认证与授权错误
	ErrUnauthorized       = errors.New("用户未授权")
	ErrTokenInvalid       = errors.New("认证 Token 无效或已过期")
	ErrInvalidCredentials = errors.New("用户名或密码不正确")
	ErrUserAlreadyExists  = errors.New("该用户名已被注册")
	ErrEmailAlreadyExists = errors.New("邮箱已被注册")
	ErrAlreadyLinked      = errors.New("该账号已绑定登录凭据")

	// 分享链接相关，文案与前端约定保持一致
	ErrShareTokenInvalid      = errors.New("Invalid or expired share token")
	ErrAuthenticationRequired = errors.New("User authentication required")
	ErrTokenCollision         = errors.New("生成唯一分享 token 失败")
	ErrGuestNotAllowed        = errors.New("This share link does not allow guest access")
	ErrInvalidQRCode          = errors.New("Invalid QR code")

	// 权限错误
	ErrPermissionDenied = errors.New("您没有操作此资源的权限")

	// 缓存错误
	ErrCacheMiss = errors.New("缓存未命中,key不存在")

	// 资源未找到错误
	ErrUserNotFound   = errors.New("用户不存在")
	ErrListNotFound   = errors.New("清单不存在")
	ErrMemberNotFound = errors.New("成员不存在")

	// 限流
	ErrTooManyRequests = errors.New("请求过于频繁，请稍后再试")

	// 并发冲突
	ErrConcurrentUpdate = errors.New("数据已被并发修改，请重试")

	// 外部服务错误
	ErrDatabaseError = errors.New("数据库操作失败")
	ErrMailError     = errors.New("邮件发送失败")
)
