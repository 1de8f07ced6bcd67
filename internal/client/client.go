// Package client 封装 casectl 与服务端的 HTTP API 交互
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"casebook-server/internal/model"
	"casebook-server/internal/service"
)

// ErrNotLoggedIn 需要登录的接口在没有 Token 时调用
var ErrNotLoggedIn = errors.New("未登录，请先运行 casectl login")

// APIError 服务端返回的失败响应
type APIError struct {
	Status   int      // HTTP 状态码
	Message  string   // message 字段
	Problems []string // 校验失败时的全部问题
}

func (e *APIError) Error() string {
	if len(e.Problems) > 1 {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Status, strings.Join(e.Problems, "；"))
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Client API 客户端
// baseURL: 例如 http://localhost:3000
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient 创建 API 客户端
// 参数:
//   - baseURL: 服务端地址
//   - token: 登录后保存的 Token，可以为空
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// 问答接口会等待模型返回
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// SetToken 更新 Token
func (c *Client) SetToken(token string) {
	c.token = token
}

// ==================== 认证与用户 ====================

// UserInfo 用户信息
type UserInfo struct {
	ID        int64   `json:"id"`
	OpenID    string  `json:"openid"`
	Name      string  `json:"name"`
	AvatarURL string  `json:"avatarUrl"`
	Gender    *string `json:"gender,omitempty"`
	Age       *int    `json:"age,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// LoginResult 登录结果
type LoginResult struct {
	Token    string   `json:"token"`
	UserInfo UserInfo `json:"userInfo"`
}

// Login 用登录码登录
func (c *Client) Login(ctx context.Context, req *service.LoginRequest) (*LoginResult, error) {
	var out LoginResult
	if err := c.call(ctx, http.MethodPost, "/api/user/login", req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout 登出，服务端会把 Token 加入黑名单
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/user/logout", nil, true, nil)
}

// Profile 获取用户资料
func (c *Client) Profile(ctx context.Context) (*UserInfo, error) {
	var out struct {
		UserInfo UserInfo `json:"userInfo"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/user/profile", nil, true, &out); err != nil {
		return nil, err
	}
	return &out.UserInfo, nil
}

// UpdateProfile 更新用户资料
func (c *Client) UpdateProfile(ctx context.Context, req *service.UpdateProfileRequest) (*UserInfo, error) {
	var out struct {
		UserInfo UserInfo `json:"userInfo"`
	}
	if err := c.call(ctx, http.MethodPut, "/api/user/profile", req, true, &out); err != nil {
		return nil, err
	}
	return &out.UserInfo, nil
}

// Health 健康检查
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/api/health", nil, false, nil)
}

// ==================== 病例 ====================

// CreateCase 提交病例，返回服务端病例ID
func (c *Client) CreateCase(ctx context.Context, payload model.CasePayload) (int64, error) {
	var out struct {
		CaseID int64 `json:"caseId"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/cases", payload, true, &out); err != nil {
		return 0, err
	}
	return out.CaseID, nil
}

// ListCases 获取病例列表
func (c *Client) ListCases(ctx context.Context) ([]service.CaseView, error) {
	var out struct {
		Cases []service.CaseView `json:"cases"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/cases", nil, true, &out); err != nil {
		return nil, err
	}
	return out.Cases, nil
}

// GetCase 获取病例详情
func (c *Client) GetCase(ctx context.Context, id int64) (*service.CaseView, error) {
	var out struct {
		CaseData service.CaseView `json:"caseData"`
	}
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/cases/%d", id), nil, true, &out); err != nil {
		return nil, err
	}
	return &out.CaseData, nil
}

// DeleteCase 删除病例
func (c *Client) DeleteCase(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/api/cases/%d", id), nil, true, nil)
}

// ==================== 问答 ====================

// ChatReply 问答回复
type ChatReply struct {
	ChatID     int64  `json:"chatId"`
	AIResponse string `json:"aiResponse"`
	Timestamp  string `json:"timestamp"`
	Fallback   bool   `json:"fallback"`
}

// SendMessage 发送问答消息
func (c *Client) SendMessage(ctx context.Context, req *service.SendMessageRequest) (*ChatReply, error) {
	var out ChatReply
	if err := c.call(ctx, http.MethodPost, "/api/chat/message", req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions 获取会话列表
func (c *Client) ListSessions(ctx context.Context) ([]service.SessionView, error) {
	var out struct {
		Sessions []service.SessionView `json:"sessions"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/chat/sessions", nil, true, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// ListMessages 获取会话消息
func (c *Client) ListMessages(ctx context.Context, sessionID int64) ([]service.MessageView, error) {
	var out struct {
		Messages []service.MessageView `json:"messages"`
	}
	path := fmt.Sprintf("/api/chat/sessions/%d/messages", sessionID)
	if err := c.call(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// DeleteSession 删除会话
func (c *Client) DeleteSession(ctx context.Context, sessionID int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/api/chat/sessions/%d", sessionID), nil, true, nil)
}

// ==================== 通用请求封装 ====================

// envelope 所有响应共有的字段，业务字段与之平级
type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// call 发送请求并把响应体解析到 out
func (c *Client) call(ctx context.Context, method, path string, body any, auth bool, out any) error {
	if auth && c.token == "" {
		return ErrNotLoggedIn
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("解析响应失败 (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Problems: env.Errors}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}
