// Package service 提供业务逻辑层的实现
// 服务层封装具体的业务逻辑，协调 Repository、Cache 和外部服务
package service

import (
	"errors"
	"fmt"
	"strings"
)

// 业务错误，Handler 层用 errors.Is 映射为 HTTP 状态码
var (
	ErrUnauthorized    = errors.New("未授权")     // 401
	ErrUserNotFound    = errors.New("用户不存在")   // 404
	ErrCaseNotFound    = errors.New("病例不存在")   // 404
	ErrSessionNotFound = errors.New("聊天会话不存在") // 404
)

// ValidationError 请求数据校验失败 (400)
// 包含全部问题，按检查顺序排列
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "；")
}

// invalid 构造校验错误，没有问题时返回 nil
func invalid(problems ...string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// UpstreamError 外部服务调用失败
// 登录时映射为 400，对话时触发降级回复
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
