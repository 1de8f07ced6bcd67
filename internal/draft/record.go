// Package draft 管理病例填写过程中的草稿
//
// 一个客户端会话同时只有一份草稿，保存在固定的槽位 (Slot) 中，与病例 ID 无关。
// 草稿经过分步填写、校验后提交到已完成病例集合 (Collection)，提交成功才清空槽位。
// 小程序侧的 casectl 使用文件槽位，服务端草稿接口使用 Redis 槽位。
package draft

import (
	"strings"
	"time"

	"casebook-server/internal/model"
	"casebook-server/pkg/jsonx"
)

// 草稿状态
const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
)

// 草稿分区名称，与小程序页面一一对应
const (
	SectionBasicInfo       = "basicInfo"
	SectionSymptoms        = "symptoms"
	SectionComorbidities   = "comorbidities"
	SectionPastHistory     = "pastHistory"
	SectionImagingReport   = "imagingReport"
	SectionPathologyReport = "pathologyReport"
)

// StepNames 填写步骤，下标 + 1 即步骤序号
var StepNames = []string{"基本信息", "症状信息", "合并疾病", "既往病史", "影像报告", "病理报告"}

// TotalSteps 步骤总数
var TotalSteps = len(StepNames)

// ComorbidityOptions 合并疾病的可选项
var ComorbidityOptions = []string{
	"高血压", "糖尿病", "冠心病/心梗", "脑梗/脑出血", "慢性支气管炎",
	"肝功能不全", "肾功能不全", "恶性肿瘤病史", "免疫缺陷疾病",
}

// PastHistoryOptions 既往病史的可选项
var PastHistoryOptions = []string{"胆囊炎急性发作病史", "黄疸", "胆总管结石", "胰腺炎"}

// Record 一份病例草稿
type Record struct {
	// ID 未提交时为空；离线模式下为 case_<uuid>，在线模式下为服务端病例 ID
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	StepCompleted int       `json:"stepCompleted"`
	CreateTime    time.Time `json:"createTime"`
	UpdateTime    time.Time `json:"updateTime"`

	BasicInfo       BasicInfo       `json:"basicInfo"`
	Symptoms        Symptoms        `json:"symptoms"`
	Comorbidities   []string        `json:"comorbidities"`
	PastHistory     []string        `json:"pastHistory"`
	ImagingReport   ImagingReport   `json:"imagingReport"`
	PathologyReport PathologyReport `json:"pathologyReport"`
}

// BasicInfo 患者基本信息
type BasicInfo struct {
	Name   string            `json:"name"`
	Gender string            `json:"gender"`
	Age    model.OptionalInt `json:"age"`
}

// Symptoms 症状持续时间
type Symptoms struct {
	Duration     model.OptionalInt `json:"duration"`
	DurationUnit string            `json:"durationUnit"`
}

// ImagingReport 影像报告
type ImagingReport struct {
	Files        []string `json:"files"`
	DetailReport string   `json:"detailReport"`
	Conclusion   string   `json:"conclusion"`
}

// PathologyReport 病理报告
type PathologyReport struct {
	Files     []string `json:"files"`
	Diagnosis string   `json:"diagnosis"`
}

// NewRecord 创建一份空草稿
func NewRecord(now time.Time) Record {
	r := Record{
		Status:     StatusDraft,
		CreateTime: now,
		UpdateTime: now,
	}
	r.normalize()
	return r
}

// normalize 把 nil 列表替换为空列表，保证序列化后是 [] 而不是 null
func (r *Record) normalize() {
	if r.Status == "" {
		r.Status = StatusDraft
	}
	r.Comorbidities = jsonx.Dedupe(r.Comorbidities)
	r.PastHistory = jsonx.Dedupe(r.PastHistory)
	if r.ImagingReport.Files == nil {
		r.ImagingReport.Files = []string{}
	}
	if r.PathologyReport.Files == nil {
		r.PathologyReport.Files = []string{}
	}
}

// Payload 转换为提交给服务端的病例数据
func (r Record) Payload() model.CasePayload {
	return model.CasePayload{
		Patient: model.PatientInfo{
			Name:   strings.TrimSpace(r.BasicInfo.Name),
			Gender: r.BasicInfo.Gender,
			Age:    r.BasicInfo.Age,
		},
		Symptoms: model.SymptomInfo{
			Duration:     r.Symptoms.Duration,
			DurationUnit: r.Symptoms.DurationUnit,
		},
		MedicalHistory: model.MedicalHistory{
			Comorbidities: jsonx.Dedupe(r.Comorbidities),
			PastHistory:   jsonx.Dedupe(r.PastHistory),
		},
		Reports: model.Reports{
			Ultrasound: joinNonEmpty(r.ImagingReport.DetailReport, r.ImagingReport.Conclusion),
			Pathology:  strings.TrimSpace(r.PathologyReport.Diagnosis),
		},
	}
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
