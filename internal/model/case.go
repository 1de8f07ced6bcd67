package model

import (
	"time"

	"gorm.io/datatypes"
)

// DurationUnit 症状持续时间单位
const (
	DurationUnitDay   = "day"
	DurationUnitWeek  = "week"
	DurationUnitMonth = "month"
	DurationUnitYear  = "year"
)

// durationUnitAliases 小程序端使用的中文单位
var durationUnitAliases = map[string]string{
	DurationUnitDay:   DurationUnitDay,
	DurationUnitWeek:  DurationUnitWeek,
	DurationUnitMonth: DurationUnitMonth,
	DurationUnitYear:  DurationUnitYear,
	"天":               DurationUnitDay,
	"周":               DurationUnitWeek,
	"月":               DurationUnitMonth,
	"年":               DurationUnitYear,
}

// NormalizeDurationUnit 把单位规范为 day/week/month/year
// 未知单位返回 false
func NormalizeDurationUnit(unit string) (string, bool) {
	u, ok := durationUnitAliases[unit]
	return u, ok
}

// Case 病例模型
// 对应数据库表 cases
// 两个标签集合以 JSON 文本存储，历史数据中可能存在格式不规范的值，读取时需要容错解析
type Case struct {
	ID     int64 `gorm:"primaryKey" json:"id"`
	UserID int64 `gorm:"index;not null" json:"user_id"`

	PatientName string  `gorm:"size:100;not null" json:"patient_name"`
	Gender      *string `gorm:"size:10" json:"gender"`
	Age         *int    `json:"age"`

	SymptomDuration int    `gorm:"not null" json:"symptom_duration"`
	DurationUnit    string `gorm:"size:10;not null" json:"duration_unit"`

	Comorbidities string `gorm:"type:text" json:"comorbidities"`
	PastHistory   string `gorm:"type:text" json:"past_history"`

	UltrasoundReport string `gorm:"type:text" json:"ultrasound_report"`
	PathologyReport  string `gorm:"type:text" json:"pathology_report"`

	// CaseData 提交时的完整原始数据
	CaseData datatypes.JSON `json:"case_data"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Case) TableName() string {
	return "cases"
}
