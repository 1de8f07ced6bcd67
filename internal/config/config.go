// Package config 负责加载和管理服务端配置
// 使用 viper 支持 YAML 配置文件和环境变量覆盖，启动时先读取可选的 .env 文件
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是服务端的根配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // 数据库配置
	Redis    RedisConfig    `mapstructure:"redis"`    // Redis 配置
	JWT      JWTConfig      `mapstructure:"jwt"`      // JWT 配置
	WeChat   WeChatConfig   `mapstructure:"wechat"`   // 微信小程序配置
	AI       AIConfig       `mapstructure:"ai"`       // 大模型配置
	Draft    DraftConfig    `mapstructure:"draft"`    // 草稿配置
	Log      LogConfig      `mapstructure:"log"`      // 日志配置
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port int      `mapstructure:"port"` // 监听端口，默认 3000
	Mode string   `mapstructure:"mode"` // 运行模式: debug / release
	CORS []string `mapstructure:"cors"` // 允许的跨域来源，"*" 表示全部
}

// DatabaseConfig 数据库连接配置
// Driver 决定使用的方言: mysql（默认）、postgres、sqlite
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`         // 数据库驱动
	Host         string `mapstructure:"host"`           // 数据库主机地址
	Port         int    `mapstructure:"port"`           // 数据库端口
	Username     string `mapstructure:"username"`       // 数据库用户名
	Password     string `mapstructure:"password"`       // 数据库密码
	Database     string `mapstructure:"database"`       // 数据库名称
	Charset      string `mapstructure:"charset"`        // 字符集（仅 MySQL）
	SSLMode      string `mapstructure:"sslmode"`        // SSL 模式（仅 PostgreSQL）
	Path         string `mapstructure:"path"`           // 数据库文件路径（仅 SQLite）
	MaxIdleConns int    `mapstructure:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int    `mapstructure:"max_open_conns"` // 最大打开连接数
	MaxLifetime  int    `mapstructure:"max_lifetime"`   // 连接最大生命周期（秒）
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`      // Redis 主机地址
	Port     int    `mapstructure:"port"`      // Redis 端口
	Username string `mapstructure:"username"`  // Redis 用户名
	Password string `mapstructure:"password"`  // Redis 密码
	DB       int    `mapstructure:"db"`        // 数据库索引 (0-15)
	PoolSize int    `mapstructure:"pool_size"` // 连接池大小
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret string        `mapstructure:"secret"` // 签名密钥
	Expire time.Duration `mapstructure:"expire"` // 有效期，默认 7 天
	Issuer string        `mapstructure:"issuer"` // 签发者
}

// WeChatConfig 微信小程序登录配置
type WeChatConfig struct {
	AppID          string        `mapstructure:"app_id"`           // 小程序 AppID
	AppSecret      string        `mapstructure:"app_secret"`       // 小程序 AppSecret
	APIBase        string        `mapstructure:"api_base"`         // 接口地址，测试时可替换
	TestCodePrefix string        `mapstructure:"test_code_prefix"` // 测试登录码前缀，为空表示关闭
	Timeout        time.Duration `mapstructure:"timeout"`          // 请求超时
}

// AIConfig OpenAI 兼容的对话补全服务配置
type AIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`      // 服务地址
	APIKey       string        `mapstructure:"api_key"`       // API Key
	Model        string        `mapstructure:"model"`         // 模型名称
	MaxTokens    int           `mapstructure:"max_tokens"`    // 最大生成长度
	Temperature  float32       `mapstructure:"temperature"`   // 采样温度
	TopP         float32       `mapstructure:"top_p"`         // 核采样
	Timeout      time.Duration `mapstructure:"timeout"`       // 请求超时
	ContextLimit int           `mapstructure:"context_limit"` // 携带的历史消息条数上限
}

// DraftConfig 服务端草稿配置
type DraftConfig struct {
	TTL time.Duration `mapstructure:"ttl"` // 草稿在 Redis 中的保留时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"` // 日志级别: debug/info/warn/error
}

// Load 从指定目录加载配置
// 加载顺序: 默认值 < 配置文件 < .env 与环境变量
// 参数:
//   - configPath: 配置文件目录路径 (如 "./configs")
//
// 返回:
//   - *Config: 配置对象
//   - error: 配置文件存在但无法解析时返回错误
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 例如: DATABASE_HOST -> database.host
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVariables(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvVariables 绑定环境变量到配置项
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.username", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.database", "DB_NAME")
	v.BindEnv("database.path", "DB_PATH")

	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	v.BindEnv("jwt.secret", "JWT_SECRET")

	v.BindEnv("wechat.app_id", "WECHAT_APPID")
	v.BindEnv("wechat.app_secret", "WECHAT_SECRET")

	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")
}

// setDefaults 设置配置项的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"*"})

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.database", "medical_cases")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "casebook.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_lifetime", 3600)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("jwt.secret", "your-secret-key")
	v.SetDefault("jwt.expire", "168h")
	v.SetDefault("jwt.issuer", "casebook")

	v.SetDefault("wechat.api_base", "https://api.weixin.qq.com")
	v.SetDefault("wechat.test_code_prefix", "test_")
	v.SetDefault("wechat.timeout", "10s")

	v.SetDefault("ai.base_url", "http://localhost:8080/v1")
	v.SetDefault("ai.api_key", "EMPTY")
	v.SetDefault("ai.model", "/root/deepseek-r1-32b")
	v.SetDefault("ai.max_tokens", 300)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.top_p", 0.95)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.context_limit", 10)

	v.SetDefault("draft.ttl", "720h")

	v.SetDefault("log.level", "info")
}
