package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode        = 40000 // 无效的请求参数
	ValidationFailedCode     = 40001 // 参数验证失败
	InvalidShareSettingsCode = 40002 // 分享设置不合法
	JoinFailedCode           = 40003 // 加入清单失败
	InvalidQRCodeCode        = 40004 // 二维码内容无法识别

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode           = 40100 // 通用未授权
	TokenInvalidCode           = 40101 // 认证 Token 无效或过期
	InvalidCredentialsCode     = 40102 // 用户名或密码错误
	AuthenticationRequiredCode = 40103 // 需要登录或提供访客名称

	// --- 权限错误系列 (403xx) ---
	ForbiddenCode        = 40300 // 通用无权限
	PermissionDeniedCode = 40301 // 权限不足 (细分)
	GuestNotAllowedCode  = 40302 // 分享链接不允许访客加入

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode          = 40400 // 通用资源未找到
	UserNotFoundCode      = 40401 // 用户不存在
	ListNotFoundCode      = 40402 // 清单不存在
	ShareTokenInvalidCode = 40403 // 分享 token 不存在或已失效
	MemberNotFoundCode    = 40404 // 成员不存在

	// --- 业务逻辑冲突系列 (409xx) ---
	UserAlreadyExistsCode  = 40900 // 用户名已存在
	EmailAlreadyExistsCode = 40901 // 邮箱已存在
	AlreadyLinkedCode      = 40902 // 账号已绑定凭据
	ConcurrentUpdateCode   = 40903 // 并发修改冲突

	// --- 限流 (429xx) ---
	TooManyRequestsCode = 42900

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	CacheErrorCode          = 50002 // 缓存服务操作失败
	MailErrorCode           = 50003 // 邮件发送失败
)
