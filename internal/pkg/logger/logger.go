package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	once sync.Once
	mu   sync.RWMutex
)

// InitLogger 初始化 Zap 日志库
// outputPath: 日志文件路径，例如 "logs/app.log"
// errorPath: 错误日志文件路径，例如 "logs/error.log"
// level: 日志级别 (debug, info, warn, error, dpanic, panic, fatal)
func InitLogger(outputPath, errorPath string, level string) {
	once.Do(func() {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(level)); err != nil {
			l = zap.InfoLevel // 默认 INFO 级别
			fmt.Fprintf(os.Stderr, "Failed to parse log level '%s', defaulting to info: %v\n", level, err)
		}

		ensureDir(outputPath)
		ensureDir(errorPath)

		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(l)
		cfg.OutputPaths = uniquePaths(outputPath, "stdout")
		cfg.ErrorOutputPaths = uniquePaths(errorPath, "stderr")
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		built, err := cfg.Build()
		if err != nil {
			panic(fmt.Sprintf("Failed to build zap logger: %v", err))
		}
		SetLogger(built)
	})
}

// SetLogger 替换全局 logger，测试中可传入 zap.NewNop() 或 zaptest logger
func SetLogger(l *zap.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
	zap.ReplaceGlobals(l)
}

// 返回全局logger
func GetLogger() *zap.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l == nil {
		// 如果在调用 InitLogger 之前调用 GetLogger，则初始化一个默认 logger
		InitLogger("stdout", "stderr", "info")
		mu.RLock()
		l = log
		mu.RUnlock()
	}
	return l
}

// Sugar 返回 Zap 的 SugaredLogger，它提供了更灵活的 API (类似 fmt.Printf)
func Sugar() *zap.SugaredLogger {
	return GetLogger().Sugar()
}

// With 返回带固定字段的子 logger
func With(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// 刷新缓冲区,确保程序退出前使用
func Sync() {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l != nil {
		// stdout/stderr 上的 Sync 在部分平台会返回 EINVAL，忽略即可
		_ = l.Sync()
	}
}

func ensureDir(path string) {
	if path == "" || path == "stdout" || path == "stderr" {
		return
	}
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
}

func uniquePaths(paths ...string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// 为方便使用，封装常用的日志方法
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}
