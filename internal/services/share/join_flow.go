package share

import (
	"context"
	"errors"
	"sync"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
)

// JoinState 加入页面的状态
type JoinState int

const (
	JoinLoading JoinState = iota
	JoinValid
	JoinInvalid
	JoinNotFound
	JoinJoining
	JoinJoined
	JoinFailed
)

func (s JoinState) String() string {
	switch s {
	case JoinLoading:
		return "loading"
	case JoinValid:
		return "valid"
	case JoinInvalid:
		return "invalid"
	case JoinNotFound:
		return "not_found"
	case JoinJoining:
		return "joining"
	case JoinJoined:
		return "joined"
	case JoinFailed:
		return "join_failed"
	}
	return "unknown"
}

// Terminal Invalid / NotFound / Joined 不再接受任何转换
func (s JoinState) Terminal() bool {
	return s == JoinInvalid || s == JoinNotFound || s == JoinJoined
}

// JoinOption 有效链接下可提供的加入方式
type JoinOption string

const (
	OptionJoinWithAccount JoinOption = "join_with_account"
	OptionJoinAsGuest     JoinOption = "join_as_guest"
	OptionSignIn          JoinOption = "sign_in"
)

var ErrInvalidTransition = errors.New("join flow: invalid state transition")

// 展示给用户的错误文案
const (
	msgLinkInvalid      = "This share link is invalid or has expired."
	msgLinkNotFound     = "Share link not found."
	msgValidationFailed = "Failed to validate share link."
	msgJoinFailed       = "Failed to join list"
)

// JoinFlow 一次加入流程的状态机
// Loading -> {Valid, Invalid, NotFound}; Valid -> Joining -> {Joined, JoinFailed}; JoinFailed -> Joining
type JoinFlow struct {
	svc   ShareService
	token string

	mu         sync.Mutex
	state      JoinState
	shareToken *models.ShareToken
	listID     string
	message    string
}

func NewJoinFlow(svc ShareService, token string) *JoinFlow {
	return &JoinFlow{svc: svc, token: token, state: JoinLoading}
}

func (f *JoinFlow) State() JoinState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// ShareToken Valid 之后可用
func (f *JoinFlow) ShareToken() *models.ShareToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shareToken
}

func (f *JoinFlow) ListID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listID
}

// Message 当前状态下给用户的错误提示
func (f *JoinFlow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Load 校验 token，只能在 Loading 状态调用一次
func (f *JoinFlow) Load(ctx context.Context) error {
	f.mu.Lock()
	if f.state != JoinLoading {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	f.mu.Unlock()

	if f.token == "" {
		f.set(JoinNotFound, msgLinkNotFound)
		return nil
	}

	st, err := f.svc.ValidateShareToken(ctx, f.token)
	if err != nil {
		f.set(JoinInvalid, msgValidationFailed)
		return err
	}
	if st == nil {
		f.set(JoinInvalid, msgLinkInvalid)
		return nil
	}

	f.mu.Lock()
	f.shareToken = st
	f.state = JoinValid
	f.message = ""
	f.mu.Unlock()
	return nil
}

// Options 返回当前用户可用的加入方式，userID 为空表示未登录
func (f *JoinFlow) Options(userID string) []JoinOption {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != JoinValid && f.state != JoinFailed {
		return nil
	}
	if userID != "" {
		return []JoinOption{OptionJoinWithAccount}
	}
	if f.shareToken != nil && f.shareToken.Settings.AllowAnonymous {
		return []JoinOption{OptionJoinAsGuest, OptionSignIn}
	}
	return []JoinOption{OptionSignIn}
}

// JoinWithAccount 已登录用户加入
func (f *JoinFlow) JoinWithAccount(ctx context.Context, userID string, isAnonymous bool) (*JoinResult, error) {
	return f.join(ctx, JoinLinkRequest{Token: f.token, UserID: userID, IsGuest: isAnonymous})
}

// JoinAsGuest 未登录用户以访客名称加入，会创建匿名账号
func (f *JoinFlow) JoinAsGuest(ctx context.Context, guestName string) (*JoinResult, error) {
	return f.join(ctx, JoinLinkRequest{Token: f.token, GuestName: guestName})
}

// JoinWith 使用完整请求加入，用于带来源信息的链接
func (f *JoinFlow) JoinWith(ctx context.Context, req JoinLinkRequest) (*JoinResult, error) {
	req.Token = f.token
	return f.join(ctx, req)
}

func (f *JoinFlow) join(ctx context.Context, req JoinLinkRequest) (*JoinResult, error) {
	f.mu.Lock()
	if f.state != JoinValid && f.state != JoinFailed {
		f.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	f.state = JoinJoining
	f.message = ""
	f.mu.Unlock()

	result, err := f.svc.JoinViaShareLink(ctx, req)
	if err != nil {
		f.set(JoinFailed, msgJoinFailed)
		return nil, err
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = msgJoinFailed
		}
		f.set(JoinFailed, msg)
		return result, nil
	}

	f.mu.Lock()
	f.state = JoinJoined
	f.listID = result.ListID
	f.mu.Unlock()
	return result, nil
}

func (f *JoinFlow) set(state JoinState, message string) {
	f.mu.Lock()
	f.state = state
	f.message = message
	f.mu.Unlock()
}
