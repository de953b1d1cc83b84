package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/cache"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/mailer"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/repositories"
	"github.com/3Eeeecho/go-grocerylist/internal/services/admin"
	"github.com/3Eeeecho/go-grocerylist/internal/services/lists"
	"github.com/3Eeeecho/go-grocerylist/internal/services/share"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	engine *gin.Engine
	auth   admin.AuthService

	mu   sync.Mutex
	sent []*gomail.Message
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "router.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.GroceryList{}, &models.ShareToken{}, &models.ShareMember{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	redisCache := cache.NewRedisCache(client)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		JWT:    config.JWTConfig{SecretKey: "test-secret", Issuer: "go-grocerylist-test", ExpiresIn: time.Hour},
		Share: config.ShareConfig{
			BaseURL:           "https://grocery.example.com",
			TokenRetries:      3,
			AllowListRetries:  5,
			MembersCacheTTL:   time.Minute,
			JoinRateLimit:     100,
			JoinRateLimitSpan: time.Minute,
		},
	}

	app := &testApp{}
	userRepo := repositories.NewUserRepository(db)
	listRepo := repositories.NewListRepository(db, cfg.Share.AllowListRetries)
	memberRepo := repositories.NewCachedShareMemberRepository(repositories.NewShareMemberRepository(db), redisCache, cfg.Share.MembersCacheTTL)
	app.auth = admin.NewAuthService(userRepo, cfg.JWT)
	listService := lists.NewListService(listRepo, memberRepo)
	inviteMailer := mailer.NewWithSender("noreply@grocery.example.com", gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		app.mu.Lock()
		defer app.mu.Unlock()
		app.sent = append(app.sent, msg.(*gomail.Message))
		return nil
	}))
	shareService := share.NewShareService(
		repositories.NewTransactionManager(db),
		repositories.NewShareTokenRepository(db),
		memberRepo,
		listRepo,
		cfg.Share,
		share.WithIdentityProvider(app.auth),
		share.WithMailer(inviteMailer),
	)

	app.engine = InitRouter(NewRouterConfig(cfg, redisCache, app.auth, admin.NewUserService(userRepo), listService, shareService))
	return app
}

// login 注册并登录，返回 JWT
func (a *testApp) login(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()
	_, err := a.auth.RegisterUser(ctx, username, "password-123", "")
	require.NoError(t, err)
	token, err := a.auth.LoginUser(ctx, username, "password-123")
	require.NoError(t, err)
	return token
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w.Code, resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestPingMetricsAndNoRoute(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grocerylist_http_requests_total")

	status, resp := app.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, xerr.NotFoundCode, resp.Code)

	status, _ = app.do(t, http.MethodGet, "/api/v1/lists", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestShareLifecycle(t *testing.T) {
	app := newTestApp(t)
	alex := app.login(t, "alex")
	sam := app.login(t, "sam")

	// Alex 创建清单并生成编辑者链接
	status, resp := app.do(t, http.MethodPost, "/api/v1/lists", alex, gin.H{"name": "Weekly groceries"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	list := decode[models.GroceryList](t, resp.Data)

	status, _ = app.do(t, http.MethodPost, "/api/v1/lists/"+list.ID+"/shares", sam, gin.H{"preset": "editor"})
	assert.Equal(t, http.StatusForbidden, status)

	status, resp = app.do(t, http.MethodPost, "/api/v1/lists/"+list.ID+"/shares", alex, gin.H{"preset": "editor", "expiresIn": "1d"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	created := decode[struct {
		Token    string `json:"token"`
		ShareURL string `json:"shareUrl"`
		Role     string `json:"role"`
	}](t, resp.Data)
	assert.Len(t, created.Token, share.TokenLength)
	assert.Equal(t, "https://grocery.example.com/join/"+created.Token, created.ShareURL)
	assert.Equal(t, "editor", created.Role)

	status, _ = app.do(t, http.MethodPost, "/api/v1/lists/"+list.ID+"/shares", alex, gin.H{"expiresIn": "2y"})
	assert.Equal(t, http.StatusBadRequest, status)

	// 未登录查看链接
	status, resp = app.do(t, http.MethodGet, "/api/v1/join/"+created.Token, "", nil)
	require.Equal(t, http.StatusOK, status)
	preview := decode[struct {
		State   string   `json:"state"`
		Options []string `json:"options"`
		Role    string   `json:"role"`
	}](t, resp.Data)
	assert.Equal(t, "valid", preview.State)
	assert.Equal(t, []string{"join_as_guest", "sign_in"}, preview.Options)
	assert.Equal(t, "editor", preview.Role)

	status, resp = app.do(t, http.MethodPost, "/api/v1/join/"+created.Token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, xerr.AuthenticationRequiredCode, resp.Code)

	// Sam 登录后加入
	status, resp = app.do(t, http.MethodPost, "/api/v1/join/"+created.Token, sam, nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	joined := decode[struct {
		State  string           `json:"state"`
		Result share.JoinResult `json:"result"`
	}](t, resp.Data)
	assert.Equal(t, "joined", joined.State)
	assert.Equal(t, list.ID, joined.Result.ListID)

	// 访客加入后拿到会话 token，可以直接访问清单
	status, resp = app.do(t, http.MethodPost, "/api/v1/join/"+created.Token, "", gin.H{"guestName": "Kim"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	guest := decode[struct {
		Result share.JoinResult `json:"result"`
	}](t, resp.Data)
	require.NotEmpty(t, guest.Result.SessionToken)
	status, _ = app.do(t, http.MethodGet, "/api/v1/lists/"+list.ID, guest.Result.SessionToken, nil)
	assert.Equal(t, http.StatusOK, status)

	// 访客会话可以查询自己的账号，并提示可绑定凭据
	status, resp = app.do(t, http.MethodGet, "/api/v1/users/me", guest.Result.SessionToken, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[struct {
		ID                 string `json:"id"`
		IsAnonymous        bool   `json:"isAnonymous"`
		CanLinkCredentials bool   `json:"canLinkCredentials"`
	}](t, resp.Data)
	assert.Equal(t, guest.Result.UserID, me.ID)
	assert.True(t, me.IsAnonymous)
	assert.True(t, me.CanLinkCredentials)

	// 成员列表
	status, resp = app.do(t, http.MethodGet, "/api/v1/lists/"+list.ID+"/members", alex, nil)
	require.Equal(t, http.StatusOK, status)
	members := decode[[]struct {
		UserID  string `json:"userId"`
		IsGuest bool   `json:"isGuest"`
		Role    string `json:"role"`
	}](t, resp.Data)
	require.Len(t, members, 2)
	var samID string
	for _, m := range members {
		assert.Equal(t, "editor", m.Role)
		if !m.IsGuest {
			samID = m.UserID
		}
	}
	require.NotEmpty(t, samID)

	// Alex 将 Sam 降为 viewer
	status, _ = app.do(t, http.MethodPut, "/api/v1/lists/"+list.ID+"/members/"+samID, sam, gin.H{"preset": "viewer"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = app.do(t, http.MethodPut, "/api/v1/lists/"+list.ID+"/members/"+samID, alex, gin.H{"preset": "viewer"})
	require.Equal(t, http.StatusOK, status)

	status, resp = app.do(t, http.MethodGet, "/api/v1/lists/"+list.ID+"/members/me", sam, nil)
	require.Equal(t, http.StatusOK, status)
	myMember := decode[struct {
		Role string `json:"role"`
	}](t, resp.Data)
	assert.Equal(t, "viewer", myMember.Role)

	// Sam 退出清单
	status, _ = app.do(t, http.MethodDelete, "/api/v1/lists/"+list.ID+"/members/"+samID, sam, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = app.do(t, http.MethodGet, "/api/v1/lists/"+list.ID, sam, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// 所有者不能被移除
	status, resp = app.do(t, http.MethodGet, "/api/v1/users/me", alex, nil)
	require.Equal(t, http.StatusOK, status)
	alexUser := decode[models.User](t, resp.Data)
	status, _ = app.do(t, http.MethodDelete, "/api/v1/lists/"+list.ID+"/members/"+alexUser.ID, alex, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// 停用后链接失效
	status, resp = app.do(t, http.MethodGet, "/api/v1/lists/"+list.ID+"/shares", alex, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.ShareToken](t, resp.Data), 1)

	status, _ = app.do(t, http.MethodDelete, "/api/v1/lists/"+list.ID+"/shares/"+created.Token, alex, nil)
	require.Equal(t, http.StatusOK, status)
	status, resp = app.do(t, http.MethodGet, "/api/v1/join/"+created.Token, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "invalid", decode[map[string]string](t, resp.Data)["state"])

	status, _ = app.do(t, http.MethodDelete, "/api/v1/lists/"+list.ID+"/shares/"+created.Token, alex, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGuestDeniedWhenAnonymousDisabled(t *testing.T) {
	app := newTestApp(t)
	alex := app.login(t, "alex")

	_, resp := app.do(t, http.MethodPost, "/api/v1/lists", alex, gin.H{"name": "Private"})
	list := decode[models.GroceryList](t, resp.Data)

	status, resp := app.do(t, http.MethodPost, "/api/v1/lists/"+list.ID+"/shares", alex, gin.H{"allowAnonymous": false})
	require.Equal(t, http.StatusOK, status, resp.Message)
	token := decode[map[string]string](t, resp.Data)["token"]

	status, resp = app.do(t, http.MethodGet, "/api/v1/join/"+token, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"sign_in"}, decode[map[string]any](t, resp.Data)["options"])

	status, resp = app.do(t, http.MethodPost, "/api/v1/join/"+token, "", gin.H{"guestName": "Kim"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, xerr.GuestNotAllowedCode, resp.Code)
}

func TestSendInviteAndJoinViaQR(t *testing.T) {
	app := newTestApp(t)
	alex := app.login(t, "alex")
	sam := app.login(t, "sam")

	_, resp := app.do(t, http.MethodPost, "/api/v1/lists", alex, gin.H{"name": "Party"})
	list := decode[models.GroceryList](t, resp.Data)
	_, resp = app.do(t, http.MethodPost, "/api/v1/lists/"+list.ID+"/shares", alex, nil)
	token := decode[map[string]string](t, resp.Data)["token"]

	status, _ := app.do(t, http.MethodPost, "/api/v1/lists/"+list.ID+"/shares/"+token+"/invite", alex, gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, resp = app.do(t, http.MethodPost, "/api/v1/lists/"+list.ID+"/shares/"+token+"/invite", alex, gin.H{"email": "kim@example.com"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	app.mu.Lock()
	require.Len(t, app.sent, 1)
	assert.Equal(t, []string{"kim@example.com"}, app.sent[0].GetHeader("To"))
	app.mu.Unlock()

	status, _ = app.do(t, http.MethodPost, "/api/v1/qr/join", sam, gin.H{"qrData": "hello"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = app.do(t, http.MethodPost, "/api/v1/qr/join", sam, gin.H{"qrData": "https://grocery.example.com/list/" + list.ID})
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Equal(t, list.ID, decode[map[string]string](t, resp.Data)["listId"])

	status, resp = app.do(t, http.MethodGet, "/api/v1/lists", sam, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.GroceryList](t, resp.Data), 1)
}
