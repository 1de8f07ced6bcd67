// Package llm 封装 OpenAI 兼容的对话补全接口
// 推理模型的输出中带有思考过程，以 </think> 结束，ExtractAnswer 负责去掉这部分
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"casebook-server/internal/config"
)

// ThinkEndMarker 思考过程的结束标记
const ThinkEndMarker = "</think>"

// minAnswerRunes 提取出的答案短于该长度时视为提取失败
const minAnswerRunes = 5

// 消息角色
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrEmptyCompletion 模型没有返回任何内容
var ErrEmptyCompletion = errors.New("empty completion response")

// Message 一条对话消息
type Message struct {
	Role    string
	Content string
}

// Client 对话补全客户端
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	topP        float32
	timeout     time.Duration
}

// NewClient 根据配置创建客户端
func NewClient(cfg config.AIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		timeout:     timeout,
	}
}

// Complete 发送对话并返回模型的原始输出
// 参数:
//   - ctx: 上下文
//   - messages: 按顺序排列的对话消息
//
// 返回:
//   - string: 模型输出，未经提取
//   - error: 网络错误、接口错误或 ErrEmptyCompletion
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// ExtractAnswer 从模型输出中提取最终答案
// 取最后一个 </think> 之后的内容；没有标记或提取结果少于 5 个字符时原样返回
func ExtractAnswer(raw string) string {
	idx := strings.LastIndex(raw, ThinkEndMarker)
	if idx < 0 {
		return raw
	}
	answer := strings.TrimSpace(raw[idx+len(ThinkEndMarker):])
	if utf8.RuneCountInString(answer) < minAnswerRunes {
		return raw
	}
	return answer
}
