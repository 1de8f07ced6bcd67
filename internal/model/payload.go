package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CasePayload 客户端提交的完整病例数据
// 原样保存在 cases.case_data 中，标量字段另存为独立的列便于查询
type CasePayload struct {
	Patient        PatientInfo    `json:"patient"`
	Symptoms       SymptomInfo    `json:"symptoms"`
	MedicalHistory MedicalHistory `json:"medicalHistory"`
	Reports        Reports        `json:"reports"`
}

// PatientInfo 患者基本信息
type PatientInfo struct {
	Name   string      `json:"name"`
	Gender string      `json:"gender,omitempty"`
	Age    OptionalInt `json:"age"`
}

// SymptomInfo 症状持续时间
type SymptomInfo struct {
	Duration     OptionalInt `json:"duration"`
	DurationUnit string      `json:"durationUnit"`
}

// MedicalHistory 合并疾病与既往病史，均为标签集合
type MedicalHistory struct {
	Comorbidities []string `json:"comorbidities"`
	PastHistory   []string `json:"pastHistory"`
}

// Reports 检查报告文本
type Reports struct {
	Ultrasound string `json:"ultrasound"`
	Pathology  string `json:"pathology"`
}

// OptionalInt 可为空的整数
// 小程序端的输入框会把数字作为字符串提交，这里同时接受数字、数字字符串、空串和 null
type OptionalInt struct {
	Value int
	Valid bool
}

// IntValue 构造一个有值的 OptionalInt
func IntValue(v int) OptionalInt {
	return OptionalInt{Value: v, Valid: true}
}

// Ptr 转换为指针形式，无值时返回 nil
func (o OptionalInt) Ptr() *int {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// MarshalJSON 无值时输出 null
func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(o.Value)), nil
}

// UnmarshalJSON 解析数字或数字字符串
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = OptionalInt{}
		return nil
	}

	text := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
		if text == "" {
			*o = OptionalInt{}
			return nil
		}
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("invalid integer %q", text)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return fmt.Errorf("integer %q out of range", text)
	}

	*o = IntValue(int(f))
	return nil
}
