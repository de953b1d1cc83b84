package share

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/mailer"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/metrics"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/mq"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ShareService 定义了清单分享服务需要实现的接口
type ShareService interface {
	// CreateShareToken 按设置创建分享 token，返回 token 字符串
	CreateShareToken(ctx context.Context, listID, createdBy string, settings models.ShareSettings) (string, error)
	// CreateShareLink 创建 token 并返回完整分享链接
	CreateShareLink(ctx context.Context, listID, createdBy string, settings models.ShareSettings) (string, error)
	GenerateShareURL(token string) string
	// ValidateShareToken 返回可兑换的 token 记录，无效时返回 nil, nil
	// 过期或用尽的 token 会在这里被停用
	ValidateShareToken(ctx context.Context, token string) (*models.ShareToken, error)

	// JoinListWithToken 使用 token 加入清单，token 无效时返回 Success=false 而不是 error
	JoinListWithToken(ctx context.Context, token, userID string, isGuest bool, guestName *string) (*JoinResult, error)
	// JoinViaShareLink 没有用户但提供了访客名称时先匿名登录再加入
	JoinViaShareLink(ctx context.Context, req JoinLinkRequest) (*JoinResult, error)
	// JoinViaQR 扫描清单二维码加入
	JoinViaQR(ctx context.Context, qrData, userID string) (string, error)

	GetUserListAccess(ctx context.Context, listID, userID string) (*models.ShareMember, error)
	GetListMembers(ctx context.Context, listID string) ([]models.ShareMember, error)
	UpdateUserPermissions(ctx context.Context, listID, userID string, perms models.SharePermissions) error
	RemoveUserAccess(ctx context.Context, listID, userID string) error

	ListShareTokens(ctx context.Context, listID string) ([]models.ShareToken, error)
	DeactivateToken(ctx context.Context, token string) error
	CleanupExpiredTokens(ctx context.Context) (int, error)
	SendShareInvite(ctx context.Context, token, email string) error
}

// JoinResult 加入操作的结果
type JoinResult struct {
	Success bool   `json:"success"`
	ListID  string `json:"listId,omitempty"`
	Error   string `json:"error,omitempty"`

	// 以下字段仅在匿名登录后返回，客户端用它继续会话
	UserID       string `json:"userId,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
}

func joinFailed(err error) *JoinResult {
	return &JoinResult{Success: false, Error: err.Error()}
}

// JoinLinkRequest 通过分享链接加入的参数
type JoinLinkRequest struct {
	Token     string
	UserID    string // 已登录用户，为空时需要 GuestName
	GuestName string
	// IsGuest 已登录用户本身是匿名账号
	IsGuest bool
	// Via 为空时按 token 记录，邀请邮件中的链接带 email
	Via models.JoinMethod
}

// IdentityProvider 匿名登录能力，由 admin.AuthService 实现
type IdentityProvider interface {
	SignInAnonymously(ctx context.Context, displayName string) (*models.User, string, error)
}

// InviteMailer 发送分享邀请邮件
type InviteMailer interface {
	SendShareInvite(ctx context.Context, inv mailer.Invite) error
}

// EventPublisher 发布成员变更事件，由 mq.EventPublisher 实现
type EventPublisher interface {
	PublishShareEvent(ctx context.Context, e mq.ShareEvent) error
}

// Option 可选配置
type Option func(*shareService)

// WithClock 替换时间来源，测试中使用固定时钟
func WithClock(now func() time.Time) Option {
	return func(s *shareService) { s.now = now }
}

// WithMailer 启用邀请邮件
func WithMailer(m InviteMailer) Option {
	return func(s *shareService) { s.mailer = m }
}

// WithIdentityProvider 启用访客匿名登录
func WithIdentityProvider(p IdentityProvider) Option {
	return func(s *shareService) { s.identity = p }
}

// WithEventPublisher 启用成员变更事件
func WithEventPublisher(p EventPublisher) Option {
	return func(s *shareService) { s.events = p }
}

// shareService 是 ShareService 接口的具体实现
type shareService struct {
	tm         repositories.TransactionManager
	tokenRepo  repositories.ShareTokenRepository
	memberRepo repositories.ShareMemberRepository
	listRepo   repositories.ListRepository
	identity   IdentityProvider
	mailer     InviteMailer
	events     EventPublisher
	cfg        config.ShareConfig
	now        func() time.Time
	generate   func() (string, error)
}

var _ ShareService = (*shareService)(nil)

// NewShareService 创建一个新的 ShareService 实例
func NewShareService(
	tm repositories.TransactionManager,
	tokenRepo repositories.ShareTokenRepository,
	memberRepo repositories.ShareMemberRepository,
	listRepo repositories.ListRepository,
	cfg config.ShareConfig,
	opts ...Option,
) ShareService {
	if cfg.TokenRetries <= 0 {
		cfg.TokenRetries = 3
	}
	s := &shareService{
		tm:         tm,
		tokenRepo:  tokenRepo,
		memberRepo: memberRepo,
		listRepo:   listRepo,
		cfg:        cfg,
		now:        time.Now,
		generate:   GenerateToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// 统一使用 UTC，保证数据库中时间比较一致
func (s *shareService) clock() time.Time {
	return s.now().UTC()
}

func (s *shareService) CreateShareToken(ctx context.Context, listID, createdBy string, settings models.ShareSettings) (string, error) {
	if listID == "" || createdBy == "" {
		return "", xerr.ErrInvalidParams
	}
	if err := settings.Validate(); err != nil {
		return "", err
	}

	now := s.clock()
	for attempt := 0; attempt < s.cfg.TokenRetries; attempt++ {
		token, err := s.generate()
		if err != nil {
			return "", err
		}

		exists, err := s.tokenRepo.ExistsByToken(ctx, token)
		if err != nil {
			return "", err
		}
		if exists {
			logger.Warn("CreateShareToken: token 冲突，重新生成", zap.Int("attempt", attempt+1))
			continue
		}

		st := &models.ShareToken{
			Token:     token,
			ListID:    listID,
			CreatedBy: createdBy,
			Settings:  copySettings(settings),
			CreatedAt: now,
			ExpiresAt: ResolveExpiration(settings.ExpiresIn, now),
			IsActive:  true,
		}
		if err := s.tokenRepo.Create(ctx, st); err != nil {
			// 检查之后仍可能被并发写入占用
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				logger.Warn("CreateShareToken: token 唯一索引冲突，重新生成", zap.Int("attempt", attempt+1))
				continue
			}
			logger.Error("CreateShareToken: 创建分享 token 记录失败", zap.String("listID", listID), zap.Error(err))
			return "", err
		}

		metrics.ShareTokensIssued.Inc()
		logger.Info("CreateShareToken: 分享 token 创建成功",
			zap.String("listID", listID),
			zap.String("createdBy", createdBy),
			zap.String("expiresIn", string(settings.ExpiresIn)))
		return token, nil
	}

	logger.Error("CreateShareToken: 多次生成 token 均冲突", zap.String("listID", listID), zap.Int("retries", s.cfg.TokenRetries))
	return "", xerr.ErrTokenCollision
}

// copySettings 复制切片和指针字段，token 持有独立的设置副本
func copySettings(in models.ShareSettings) models.ShareSettings {
	out := in
	items := make([]string, len(in.SelectedItems))
	copy(items, in.SelectedItems)
	out.SelectedItems = datatypes.NewJSONSlice(items)
	if in.MaxUses != nil {
		v := *in.MaxUses
		out.MaxUses = &v
	}
	return out
}

func (s *shareService) CreateShareLink(ctx context.Context, listID, createdBy string, settings models.ShareSettings) (string, error) {
	token, err := s.CreateShareToken(ctx, listID, createdBy, settings)
	if err != nil {
		return "", err
	}
	return s.GenerateShareURL(token), nil
}

// GenerateShareURL 拼接 <base_url>/join/<token>
func (s *shareService) GenerateShareURL(token string) string {
	u, err := url.JoinPath(s.cfg.BaseURL, "join", token)
	if err != nil {
		return strings.TrimRight(s.cfg.BaseURL, "/") + "/join/" + url.PathEscape(token)
	}
	return u
}

func (s *shareService) ValidateShareToken(ctx context.Context, token string) (*models.ShareToken, error) {
	if token == "" {
		return nil, nil
	}
	st, err := s.tokenRepo.FindActiveByToken(ctx, token)
	if err != nil {
		logger.Error("ValidateShareToken: 查询分享 token 失败", zap.Error(err))
		return nil, err
	}
	if st == nil {
		return nil, nil
	}

	now := s.clock()
	switch {
	case st.IsExpired(now):
		if err := s.deactivate(ctx, token, "expired"); err != nil {
			return nil, err
		}
		return nil, nil
	case st.IsExhausted():
		if err := s.deactivate(ctx, token, "exhausted"); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return st, nil
}

func (s *shareService) deactivate(ctx context.Context, token, reason string) error {
	n, err := s.tokenRepo.DeactivateByToken(ctx, token)
	if err != nil {
		logger.Error("deactivate: 停用分享 token 失败", zap.String("reason", reason), zap.Error(err))
		return err
	}
	if n > 0 {
		metrics.ShareTokensDeactivated.WithLabelValues(reason).Add(float64(n))
		logger.Info("deactivate: 分享 token 已停用", zap.String("reason", reason), zap.Int64("count", n))
	}
	return nil
}

// errUsageExhausted 事务内条件自增失败，用于触发回滚
var errUsageExhausted = errors.New("share token usage exhausted")

func (s *shareService) JoinListWithToken(ctx context.Context, token, userID string, isGuest bool, guestName *string) (*JoinResult, error) {
	return s.join(ctx, token, userID, isGuest, guestName, models.JoinViaToken)
}

func (s *shareService) join(ctx context.Context, token, userID string, isGuest bool, guestName *string, via models.JoinMethod) (*JoinResult, error) {
	if userID == "" {
		metrics.ShareJoins.WithLabelValues("auth_required").Inc()
		return joinFailed(xerr.ErrAuthenticationRequired), nil
	}

	// 再次校验，覆盖展示邀请与确认加入之间的时间窗口
	st, err := s.ValidateShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if st == nil {
		metrics.ShareJoins.WithLabelValues("invalid").Inc()
		return joinFailed(xerr.ErrShareTokenInvalid), nil
	}

	existing, err := s.memberRepo.FindByListAndUser(ctx, st.ListID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.ShareJoins.WithLabelValues("already_member").Inc()
		logger.Debug("JoinListWithToken: 用户已是清单成员", zap.String("listID", st.ListID), zap.String("userID", userID))
		return &JoinResult{Success: true, ListID: st.ListID}, nil
	}

	if isGuest && !st.Settings.AllowAnonymous {
		metrics.ShareJoins.WithLabelValues("guest_denied").Inc()
		return joinFailed(xerr.ErrGuestNotAllowed), nil
	}

	now := s.clock()
	member := &models.ShareMember{
		ListID:      st.ListID,
		UserID:      userID,
		JoinedAt:    now,
		JoinedVia:   via,
		Permissions: st.Settings.Permissions,
		IsGuest:     isGuest,
	}
	if isGuest && guestName != nil {
		if name := strings.TrimSpace(*guestName); name != "" {
			member.GuestName = &name
		}
	}

	listFound := true
	alreadyJoined := false
	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		created, err := s.memberRepo.WithTx(tx).Create(ctx, member)
		if err != nil {
			return err
		}
		if !created {
			// 并发请求已经为该用户创建了成员记录
			alreadyJoined = true
			return nil
		}

		ok, err := s.tokenRepo.WithTx(tx).IncrementUsage(ctx, st.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errUsageExhausted
		}

		listFound, err = s.listRepo.WithTx(tx).AddAllowedUser(ctx, st.ListID, userID, now)
		return err
	})
	if err != nil {
		if errors.Is(err, errUsageExhausted) {
			metrics.ShareJoins.WithLabelValues("invalid").Inc()
			logger.Info("JoinListWithToken: token 已在并发请求中用尽", zap.String("listID", st.ListID))
			return joinFailed(xerr.ErrShareTokenInvalid), nil
		}
		metrics.ShareJoins.WithLabelValues("error").Inc()
		logger.Error("JoinListWithToken: 加入清单失败", zap.String("listID", st.ListID), zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("加入清单失败: %w", err)
	}

	s.invalidateMembers(ctx, st.ListID)

	if alreadyJoined {
		metrics.ShareJoins.WithLabelValues("already_member").Inc()
		return &JoinResult{Success: true, ListID: st.ListID}, nil
	}
	if !listFound {
		metrics.AllowListMissingList.Inc()
		logger.Warn("JoinListWithToken: 清单不存在，跳过 allowedUsers 同步", zap.String("listID", st.ListID), zap.String("userID", userID))
	}

	metrics.ShareJoins.WithLabelValues("joined").Inc()
	perms := member.Permissions
	s.publish(ctx, mq.ShareEvent{
		Type:        mq.EventMemberJoined,
		ListID:      st.ListID,
		UserID:      userID,
		Token:       token,
		JoinedVia:   via,
		Permissions: &perms,
	})
	logger.Info("JoinListWithToken: 用户加入清单成功",
		zap.String("listID", st.ListID),
		zap.String("userID", userID),
		zap.Bool("isGuest", isGuest),
		zap.String("via", string(via)))
	return &JoinResult{Success: true, ListID: st.ListID}, nil
}

// publish 在事务提交后调用，发布失败不影响主流程
func (s *shareService) publish(ctx context.Context, e mq.ShareEvent) {
	if s.events == nil {
		return
	}
	e.OccurredAt = s.clock()
	if err := s.events.PublishShareEvent(ctx, e); err != nil {
		logger.Warn("publish: 发布分享事件失败", zap.String("type", string(e.Type)), zap.String("listID", e.ListID), zap.Error(err))
	}
}

// invalidateMembers 事务提交后再次清理成员缓存，避免提交前被旧数据回填
func (s *shareService) invalidateMembers(ctx context.Context, listID string) {
	if inv, ok := s.memberRepo.(repositories.MemberCacheInvalidator); ok {
		inv.InvalidateListMembers(ctx, listID)
	}
}

func (s *shareService) JoinViaShareLink(ctx context.Context, req JoinLinkRequest) (*JoinResult, error) {
	via := req.Via
	if via == "" {
		via = models.JoinViaToken
	}
	guestName := strings.TrimSpace(req.GuestName)

	if req.UserID != "" {
		var name *string
		if req.IsGuest && guestName != "" {
			name = &guestName
		}
		return s.join(ctx, req.Token, req.UserID, req.IsGuest, name, via)
	}

	if guestName == "" || s.identity == nil {
		metrics.ShareJoins.WithLabelValues("auth_required").Inc()
		return joinFailed(xerr.ErrAuthenticationRequired), nil
	}

	// 先校验 token，避免为无效链接创建匿名账号
	st, err := s.ValidateShareToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if st == nil {
		metrics.ShareJoins.WithLabelValues("invalid").Inc()
		return joinFailed(xerr.ErrShareTokenInvalid), nil
	}
	if !st.Settings.AllowAnonymous {
		metrics.ShareJoins.WithLabelValues("guest_denied").Inc()
		return joinFailed(xerr.ErrGuestNotAllowed), nil
	}

	user, session, err := s.identity.SignInAnonymously(ctx, guestName)
	if err != nil {
		logger.Error("JoinViaShareLink: 匿名登录失败", zap.Error(err))
		return nil, fmt.Errorf("创建访客会话失败: %w", err)
	}

	// 加入失败时也返回会话，客户端可以继续使用已创建的访客账号
	result, err := s.join(ctx, req.Token, user.ID, true, &guestName, via)
	if err != nil {
		logger.Warn("JoinViaShareLink: 访客账号已创建但加入失败", zap.String("userID", user.ID), zap.Error(err))
		return nil, err
	}
	result.UserID = user.ID
	result.SessionToken = session
	return result, nil
}

func (s *shareService) JoinViaQR(ctx context.Context, qrData, userID string) (string, error) {
	if userID == "" {
		return "", xerr.ErrAuthenticationRequired
	}
	listID, err := ParseListIDFromQR(qrData)
	if err != nil {
		return "", err
	}

	list, err := s.listRepo.FindByID(ctx, listID)
	if err != nil {
		return "", err
	}
	if list == nil {
		return "", xerr.ErrListNotFound
	}
	if list.OwnerID == userID {
		return listID, nil
	}

	now := s.clock()
	member := &models.ShareMember{
		ListID:      listID,
		UserID:      userID,
		JoinedAt:    now,
		JoinedVia:   models.JoinViaQR,
		Permissions: presets[PresetEditor],
	}
	created := false
	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.memberRepo.WithTx(tx).Create(ctx, member)
		if err != nil {
			return err
		}
		found, err := s.listRepo.WithTx(tx).AddAllowedUser(ctx, listID, userID, now)
		if err != nil {
			return err
		}
		if !found {
			return xerr.ErrListNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, xerr.ErrListNotFound) {
			logger.Error("JoinViaQR: 扫码加入清单失败", zap.String("listID", listID), zap.Error(err))
		}
		return "", err
	}
	if !created {
		logger.Debug("JoinViaQR: 用户已是清单成员", zap.String("listID", listID), zap.String("userID", userID))
		return listID, nil
	}
	s.invalidateMembers(ctx, listID)
	s.publish(ctx, mq.ShareEvent{
		Type:        mq.EventMemberJoined,
		ListID:      listID,
		UserID:      userID,
		JoinedVia:   models.JoinViaQR,
		Permissions: &member.Permissions,
	})

	logger.Info("JoinViaQR: 用户扫码加入清单", zap.String("listID", listID), zap.String("userID", userID))
	return listID, nil
}

func (s *shareService) GetUserListAccess(ctx context.Context, listID, userID string) (*models.ShareMember, error) {
	return s.memberRepo.FindByListAndUser(ctx, listID, userID)
}

func (s *shareService) GetListMembers(ctx context.Context, listID string) ([]models.ShareMember, error) {
	members, err := s.memberRepo.FindByListID(ctx, listID)
	if err != nil {
		logger.Error("GetListMembers: 查询清单成员失败", zap.String("listID", listID), zap.Error(err))
		return nil, err
	}
	return members, nil
}

// UpdateUserPermissions 只修改成员记录，不影响已签发的 token
func (s *shareService) UpdateUserPermissions(ctx context.Context, listID, userID string, perms models.SharePermissions) error {
	n, err := s.memberRepo.UpdatePermissions(ctx, listID, userID, perms)
	if err != nil {
		logger.Error("UpdateUserPermissions: 更新成员权限失败", zap.String("listID", listID), zap.String("userID", userID), zap.Error(err))
		return err
	}
	if n == 0 {
		// MySQL 默认返回实际变更的行数，权限未变化时也是 0
		existing, err := s.memberRepo.FindByListAndUser(ctx, listID, userID)
		if err != nil {
			return err
		}
		if existing == nil {
			return xerr.ErrMemberNotFound
		}
		return nil
	}
	s.publish(ctx, mq.ShareEvent{Type: mq.EventPermissionsUpdated, ListID: listID, UserID: userID, Permissions: &perms})
	logger.Info("UpdateUserPermissions: 成员权限已更新",
		zap.String("listID", listID),
		zap.String("userID", userID),
		zap.String("role", DescribePreset(perms)))
	return nil
}

// RemoveUserAccess 删除成员记录并从 allowedUsers 中移除，两步在同一事务中完成
func (s *shareService) RemoveUserAccess(ctx context.Context, listID, userID string) error {
	now := s.clock()
	var removed int64
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		n, err := s.memberRepo.WithTx(tx).DeleteByListAndUser(ctx, listID, userID)
		if err != nil {
			return err
		}
		removed = n
		found, err := s.listRepo.WithTx(tx).RemoveAllowedUser(ctx, listID, userID, now)
		if err != nil {
			return err
		}
		if !found {
			logger.Warn("RemoveUserAccess: 清单不存在，跳过 allowedUsers 同步", zap.String("listID", listID))
		}
		return nil
	})
	if err != nil {
		logger.Error("RemoveUserAccess: 移除成员失败", zap.String("listID", listID), zap.String("userID", userID), zap.Error(err))
		return err
	}
	s.invalidateMembers(ctx, listID)
	if removed > 0 {
		s.publish(ctx, mq.ShareEvent{Type: mq.EventMemberRemoved, ListID: listID, UserID: userID})
	}

	logger.Info("RemoveUserAccess: 成员已移除", zap.String("listID", listID), zap.String("userID", userID), zap.Int64("records", removed))
	return nil
}

func (s *shareService) ListShareTokens(ctx context.Context, listID string) ([]models.ShareToken, error) {
	return s.tokenRepo.FindActiveByListID(ctx, listID)
}

func (s *shareService) DeactivateToken(ctx context.Context, token string) error {
	st, err := s.tokenRepo.FindActiveByToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.deactivate(ctx, token, "revoked"); err != nil {
		return err
	}
	if st != nil {
		s.publish(ctx, mq.ShareEvent{Type: mq.EventTokenRevoked, ListID: st.ListID, Token: token})
	}
	return nil
}

// CleanupExpiredTokens 停用所有已过期但仍有效的 token，返回停用数量
func (s *shareService) CleanupExpiredTokens(ctx context.Context) (int, error) {
	expired, err := s.tokenRepo.FindExpiredActive(ctx, s.clock())
	if err != nil {
		logger.Error("CleanupExpiredTokens: 查询过期 token 失败", zap.Error(err))
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(expired))
	for _, st := range expired {
		ids = append(ids, st.ID)
	}
	n, err := s.tokenRepo.DeactivateByIDs(ctx, ids)
	if err != nil {
		logger.Error("CleanupExpiredTokens: 批量停用 token 失败", zap.Error(err))
		return 0, err
	}

	metrics.ShareTokensDeactivated.WithLabelValues("cleanup").Add(float64(n))
	logger.Info("CleanupExpiredTokens: 已停用过期 token", zap.Int64("count", n))
	return int(n), nil
}

func (s *shareService) SendShareInvite(ctx context.Context, token, email string) error {
	if s.mailer == nil {
		return fmt.Errorf("%w: 未配置邮件服务", xerr.ErrMailError)
	}
	if email == "" {
		return xerr.ErrInvalidParams
	}

	st, err := s.ValidateShareToken(ctx, token)
	if err != nil {
		return err
	}
	if st == nil {
		return xerr.ErrShareTokenInvalid
	}

	listName := "a grocery list"
	list, err := s.listRepo.FindByID(ctx, st.ListID)
	if err != nil {
		return err
	}
	if list != nil {
		listName = list.Name
	}

	shareURL := s.GenerateShareURL(token) + "?via=" + string(models.JoinViaEmail)
	err = s.mailer.SendShareInvite(ctx, mailer.Invite{
		To:          email,
		ListName:    listName,
		ShareURL:    shareURL,
		Role:        PermissionLabel(st.Settings.Permissions),
		Permissions: DescribePermissions(st.Settings.Permissions),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrMailError, err)
	}
	return nil
}
