// Package jsonx 提供对已存储 JSON 字段的容错解析
//
// 历史数据来自不同版本的客户端，同一列中可能出现：标准 JSON、
// 单引号或未加引号键名的"类 JSON"、普通字符串，甚至驱动已经解码好的原生值。
// 这里按固定顺序逐级尝试，每一级都是独立的函数：
//
//  1. 原生值直接透传
//  2. 严格解析 (Strict)
//  3. 修复后再解析 (Repair)：单引号替换为双引号、为裸键名补引号
//  4. 标签集合：无法解析的字符串包装为单元素列表 (WrapBare)
//  5. 其他任何情况（包括 panic）返回默认值：标签为空列表，对象为空 map
//
// 逗号分隔的字符串不会被拆分，整体作为一个标签。
package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// bareKeyPattern 匹配对象中未加引号的键名，只在 { 或 , 之后生效，避免误改值里的冒号
var bareKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// Tags 解析标签集合列
// 参数:
//   - v: 列值，可以是 string、[]byte、[]string、[]any 或 nil
//
// 返回:
//   - []string: 去重后的标签，永不为 nil
func Tags(v any) (tags []string) {
	defer func() {
		if r := recover(); r != nil {
			tags = []string{}
		}
	}()

	switch val := v.(type) {
	case nil:
		return []string{}
	case []string:
		return Dedupe(val)
	case []any:
		return tagsFromValue(val)
	case string:
		return tagsFromText(val)
	case []byte:
		return tagsFromText(string(val))
	case json.RawMessage:
		return tagsFromText(string(val))
	default:
		return []string{}
	}
}

// Object 解析对象列（如完整的病例数据）
// 参数:
//   - v: 列值，可以是 string、[]byte、map[string]any 或 nil
//
// 返回:
//   - map[string]any: 解析结果，失败时为空 map，永不为 nil
func Object(v any) (obj map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			obj = map[string]any{}
		}
	}()

	switch val := v.(type) {
	case map[string]any:
		return val
	case string:
		return objectFromText(val)
	case []byte:
		return objectFromText(string(val))
	case json.RawMessage:
		return objectFromText(string(val))
	default:
		return map[string]any{}
	}
}

// Strict 严格按标准 JSON 解析
func Strict(text string) (any, bool) {
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, false
	}
	return out, true
}

// Repair 把常见的"类 JSON"写法修正为标准 JSON
// 只处理两种情况：单引号字符串、未加引号的键名
func Repair(text string) string {
	fixed := strings.ReplaceAll(text, "'", `"`)
	return bareKeyPattern.ReplaceAllString(fixed, `$1"$2":`)
}

// WrapBare 把无法解析的字符串包装为单元素标签列表
func WrapBare(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}
	return []string{text}
}

// Dedupe 去掉空白标签与重复标签，保留首次出现的顺序
func Dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func tagsFromText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}

	if parsed, ok := Strict(text); ok {
		return tagsFromParsed(parsed)
	}

	if looksStructured(text) {
		if parsed, ok := Strict(Repair(text)); ok {
			return tagsFromParsed(parsed)
		}
		return []string{}
	}

	return WrapBare(text)
}

// tagsFromParsed 处理解析成功后的值，只接受列表和字符串
func tagsFromParsed(parsed any) []string {
	switch val := parsed.(type) {
	case []any:
		return tagsFromValue(val)
	case string:
		// 双重编码的情况，例如 "\"[\\\"高血压\\\"]\""
		return tagsFromText(val)
	default:
		return []string{}
	}
}

func tagsFromValue(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case nil:
		case string:
			out = append(out, v)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return Dedupe(out)
}

func objectFromText(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]any{}
	}

	if parsed, ok := Strict(text); ok {
		if m, ok := parsed.(map[string]any); ok {
			return m
		}
		return map[string]any{}
	}

	if parsed, ok := Strict(Repair(text)); ok {
		if m, ok := parsed.(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// looksStructured 判断字符串是否像列表或对象
func looksStructured(text string) bool {
	return (strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")) ||
		(strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}"))
}
