package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger_RoutesHelpers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))

	Info("CreateShareToken: 分享 token 创建成功", zap.String("listID", "l1"))
	Warn("JoinListWithToken: 清单不存在")
	With(zap.String("token", "abc")).Error("failed")

	entries := logs.All()
	assert.Len(t, entries, 3)
	assert.Equal(t, "l1", entries[0].ContextMap()["listID"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "abc", entries[2].ContextMap()["token"])
}

func TestUniquePaths(t *testing.T) {
	assert.Equal(t, []string{"stdout"}, uniquePaths("stdout", "stdout"))
	assert.Equal(t, []string{"logs/app.log", "stdout"}, uniquePaths("logs/app.log", "", "stdout"))
}
