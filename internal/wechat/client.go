// Package wechat 封装微信小程序登录凭证校验接口 (jscode2session)
package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"casebook-server/internal/config"
)

// TestOpenIDPrefix 测试登录码换出的 openid 前缀
const TestOpenIDPrefix = "test_openid_"

// ErrEmptyCode 登录码为空
var ErrEmptyCode = errors.New("登录码不能为空")

// APIError 微信接口返回的错误
type APIError struct {
	Code    int    `json:"errcode"`
	Message string `json:"errmsg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wechat errcode %d: %s", e.Code, e.Message)
}

// Session jscode2session 的返回结果
type Session struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
}

// Client 微信接口客户端
type Client struct {
	appID      string
	appSecret  string
	apiBase    string
	testPrefix string
	httpClient *http.Client
}

// NewClient 创建微信接口客户端
func NewClient(cfg config.WeChatConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		testPrefix: cfg.TestCodePrefix,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Code2Session 用登录码换取 openid
// 以测试前缀开头的登录码不会请求微信，直接映射为固定的测试 openid
// 参数:
//   - ctx: 上下文
//   - code: wx.login 返回的登录码
//
// 返回:
//   - *Session: 包含 openid
//   - error: 网络错误或 *APIError
func (c *Client) Code2Session(ctx context.Context, code string) (*Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	if c.testPrefix != "" && strings.HasPrefix(code, c.testPrefix) {
		return &Session{OpenID: TestOpenIDPrefix + strings.TrimPrefix(code, c.testPrefix)}, nil
	}

	q := url.Values{}
	q.Set("appid", c.appID)
	q.Set("secret", c.appSecret)
	q.Set("js_code", code)
	q.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/sns/jscode2session?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request jscode2session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Code: resp.StatusCode, Message: resp.Status}
	}

	var body struct {
		Session
		APIError
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode jscode2session: %w", err)
	}

	if body.APIError.Code != 0 {
		return nil, &body.APIError
	}
	if body.OpenID == "" {
		return nil, &APIError{Code: -1, Message: "missing openid"}
	}
	return &body.Session, nil
}
