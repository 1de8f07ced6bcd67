package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultServerURL 默认服务端地址
const DefaultServerURL = "http://localhost:3000"

// Config CLI 配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	URL string `mapstructure:"url"` // HTTP API 地址
}

// AuthConfig 登录信息
type AuthConfig struct {
	Token  string `mapstructure:"token"`   // 访问 Token
	UserID int64  `mapstructure:"user_id"` // 用户 ID
	OpenID string `mapstructure:"openid"`  // 微信 openid
	Name   string `mapstructure:"name"`    // 昵称
}

// Store 配置目录，保存 config.yaml 以及离线草稿和病例文件
type Store struct {
	dir string
	v   *viper.Viper
	cfg Config
}

// DefaultDir 返回默认配置目录 ~/.casebook
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("获取用户目录失败: %w", err)
	}
	return filepath.Join(home, ".casebook"), nil
}

// OpenStore 打开配置目录，配置文件不存在时写入默认配置
// 参数:
//   - dir: 配置目录
//
// 返回:
//   - *Store: 配置
//   - error: 创建目录或解析配置失败
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("创建配置目录失败: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server.url", DefaultServerURL)
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.user_id", 0)
	v.SetDefault("auth.openid", "")
	v.SetDefault("auth.name", "")

	// 允许通过环境变量覆盖服务端地址
	v.BindEnv("server.url", "CASEBOOK_SERVER")

	if err := v.ReadInConfig(); err != nil {
		// SetConfigFile 时文件不存在返回的是 fs 错误而不是 ConfigFileNotFoundError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := v.SafeWriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("写入默认配置失败: %w", err)
		}
	}

	s := &Store{dir: dir, v: v}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reload() error {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}
	s.cfg = cfg
	return nil
}

// Config 返回当前配置
func (s *Store) Config() Config {
	return s.cfg
}

// Dir 配置目录
func (s *Store) Dir() string {
	return s.dir
}

// DraftPath 离线草稿文件
func (s *Store) DraftPath() string {
	return filepath.Join(s.dir, "draft.json")
}

// CasesPath 离线病例文件
func (s *Store) CasesPath() string {
	return filepath.Join(s.dir, "cases.json")
}

// IsLoggedIn 检查是否已登录
func (s *Store) IsLoggedIn() bool {
	return s.cfg.Auth.Token != ""
}

// SetServerURL 保存服务端地址
func (s *Store) SetServerURL(url string) error {
	s.v.Set("server.url", url)
	return s.save()
}

// SaveAuth 保存登录信息
func (s *Store) SaveAuth(auth AuthConfig) error {
	s.v.Set("auth.token", auth.Token)
	s.v.Set("auth.user_id", auth.UserID)
	s.v.Set("auth.openid", auth.OpenID)
	s.v.Set("auth.name", auth.Name)
	return s.save()
}

// ClearAuth 清除登录信息
func (s *Store) ClearAuth() error {
	return s.SaveAuth(AuthConfig{})
}

func (s *Store) save() error {
	if err := s.v.WriteConfig(); err != nil {
		return fmt.Errorf("保存配置失败: %w", err)
	}
	return s.reload()
}
