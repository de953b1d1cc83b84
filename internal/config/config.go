package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper" // 导入 Viper
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"` // `mapstructure` 标签用于Viper绑定结构体
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Share    ShareConfig    `mapstructure:"share"`
	Mail     MailConfig     `mapstructure:"mail"`
	Task     TaskConfig     `mapstructure:"task"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release / test
}

// DatabaseConfig 数据库配置
// Type 支持 mysql / postgres / sqlite
type DatabaseConfig struct {
	Type         string `mapstructure:"type"`
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	ExpiresIn time.Duration `mapstructure:"expires_in"` // 使用 time.Duration 更清晰
	Issuer    string        `mapstructure:"issuer"`
}

// zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

// ShareConfig 分享链接相关配置
type ShareConfig struct {
	BaseURL           string        `mapstructure:"base_url"`            // 分享链接的访问源，例如 https://grocery.example.com
	TokenRetries      int           `mapstructure:"token_retries"`       // token 冲突时的最大重试次数
	AllowListRetries  int           `mapstructure:"allow_list_retries"`  // allowedUsers 乐观锁重试次数
	MembersCacheTTL   time.Duration `mapstructure:"members_cache_ttl"`   // 成员列表缓存时间
	JoinRateLimit     int           `mapstructure:"join_rate_limit"`     // 单个客户端每个窗口内允许的加入次数
	JoinRateLimitSpan time.Duration `mapstructure:"join_rate_limit_span"` // 限流窗口
}

// MailConfig SMTP 配置，用于发送分享邀请
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// TaskConfig 后台任务配置
type TaskConfig struct {
	CleanupSpec string `mapstructure:"cleanup_spec"` // cron 表达式，为空时不启动清理任务
}

// RabbitMQConfig 成员变更事件发布，URL 为空时不发布
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"` // topic 类型，routing key 为 share.<事件类型>
}

var AppConfig *Config // 全局应用配置实例

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.type", "mysql")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.expires_in", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "go-grocerylist")
	v.SetDefault("log.output_path", "logs/app.log")
	v.SetDefault("log.error_path", "logs/error.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("share.base_url", "http://localhost:3000")
	v.SetDefault("share.token_retries", 3)
	v.SetDefault("share.allow_list_retries", 5)
	v.SetDefault("share.members_cache_ttl", 5*time.Minute)
	v.SetDefault("share.join_rate_limit", 20)
	v.SetDefault("share.join_rate_limit_span", time.Minute)
	v.SetDefault("mail.port", 587)
	v.SetDefault("task.cleanup_spec", "@every 10m")
	v.SetDefault("rabbitmq.exchange", "grocerylist.share")
}

// LoadConfig 加载配置
// configFile 为空时按默认路径查找 config.yaml
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")               // 配置文件名 (不带扩展名)
		v.SetConfigType("yaml")                 // 配置文件类型
		v.AddConfigPath(".")                    // 在当前目录查找配置文件
		v.AddConfigPath("./configs")            // 也可以添加其他路径，例如 ./configs/
		v.AddConfigPath("/etc/go-grocerylist/") // 生产环境常见路径
	}

	// 读取环境变量，例如 GO_GROCERY_SERVER_PORT 对应 server.port
	v.SetEnvPrefix("GO_GROCERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// 配置文件存在但格式错误
			return nil, err
		}
		// 配置文件未找到不是致命错误，依赖环境变量和默认值
		log.Println("Warning: config file not found, using environment variables or default values.")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("jwt.secret_key is required")
	}

	AppConfig = cfg
	log.Println("Configuration loaded successfully with Viper.")
	return cfg, nil
}
