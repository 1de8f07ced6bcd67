// Package util 提供通用工具函数
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateUUID 生成不含连字符的 UUID v4
func GenerateUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GenerateCaseID 生成离线病例 ID，格式 case_<uuid>
func GenerateCaseID() string {
	return "case_" + GenerateUUID()
}

// HashToken 计算 Token 的 SHA256 哈希值
// 黑名单中只保存哈希，不保存原始 Token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// TruncateRunes 按字符（而不是字节）截断字符串
// 超过 maxRunes 时截断并追加 "..."
// 参数:
//   - s: 原字符串
//   - maxRunes: 保留的最大字符数
//
// 返回:
//   - string: 截断后的字符串
func TruncateRunes(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}

// FormatRelativeTime 把时间格式化为相对描述
// 一分钟内为"刚刚"，一小时内为"N分钟前"，一天内为"N小时前"，一周内为"N天前"，更早显示日期
func FormatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "刚刚"
	case diff < time.Hour:
		return fmt.Sprintf("%d分钟前", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d小时前", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d天前", int(diff/(24*time.Hour)))
	default:
		return t.Format("2006-01-02")
	}
}

// FormatClock 格式化为 HH:MM
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// StringPtr 返回字符串的指针，空字符串返回 nil
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
