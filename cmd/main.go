// @title go-grocerylist API
// @version 1.0
// @description 购物清单分享服务：分享链接、成员权限与加入流程
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/3Eeeecho/go-grocerylist/cmd/server"
	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 构建时通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "grocerylist",
	Short: "Grocery list sharing service",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve [-c config_file]",
	Short: "Run HTTP service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoad()
		defer logger.Sync() // 确保在应用退出时刷新所有缓冲的日志条目

		logger.Info("启动购物清单服务...", zap.String("version", Version))

		// 创建并构建应用服务器实例
		srv, err := server.NewServer(cfg)
		if err != nil {
			logger.Fatal("无法启动应用程序", zap.Error(err))
		}

		// 创建一个通道用于接收停止信号
		stopChan := make(chan os.Signal, 1)
		signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

		srv.Run(context.Background(), stopChan)
		logger.Info("购物清单服务已退出。")
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-tokens [-c config_file]",
	Short: "Deactivate expired share tokens once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoad()
		defer logger.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		n, err := server.CleanupTokens(ctx, cfg)
		if err != nil {
			logger.Error("清理过期 token 失败", zap.Error(err))
			return err
		}
		logger.Info("清理过期 token 完成", zap.Int("count", n))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print out version info and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("v%s BuildTime:%s\n", Version, BuildTime)
	},
}

func mustLoad() *config.Config {
	// 加载配置
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置出错: %v\n", err)
		os.Exit(1)
	}

	//初始化日志系统
	logger.InitLogger(cfg.Log.OutputPath, cfg.Log.ErrorPath, cfg.Log.Level)
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.AddCommand(serveCmd, cleanupCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
