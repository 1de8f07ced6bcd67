package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"casebook-server/internal/draft"
	"casebook-server/internal/model"
	"casebook-server/internal/repository"
	"casebook-server/pkg/jsonx"
)

// CaseService 病例服务
// 校验并保存提交的病例，读取时对 JSON 列做容错解析
type CaseService struct {
	caseRepo *repository.CaseRepository
}

// NewCaseService 创建 CaseService 实例
func NewCaseService(caseRepo *repository.CaseRepository) *CaseService {
	return &CaseService{caseRepo: caseRepo}
}

// CaseView 返回给客户端的病例
// 字段命名与数据库列一致
type CaseView struct {
	ID               int64          `json:"id"`
	PatientName      string         `json:"patient_name"`
	Gender           *string        `json:"gender"`
	Age              *int           `json:"age"`
	SymptomDuration  int            `json:"symptom_duration"`
	DurationUnit     string         `json:"duration_unit"`
	Comorbidities    []string       `json:"comorbidities"`
	PastHistory      []string       `json:"past_history"`
	UltrasoundReport string         `json:"ultrasound_report"`
	PathologyReport  string         `json:"pathology_report"`
	CaseData         map[string]any `json:"case_data"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// CreateCase 创建病例
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - raw: 客户端提交的原始 JSON，原样保存到 case_data
//
// 返回:
//   - int64: 新病例ID
//   - error: *ValidationError 或数据库错误
func (s *CaseService) CreateCase(ctx context.Context, userID int64, raw json.RawMessage) (int64, error) {
	c, err := buildCase(raw)
	if err != nil {
		return 0, err
	}

	c.UserID = userID
	if err := s.caseRepo.Create(ctx, c); err != nil {
		return 0, err
	}

	log.Printf("[INFO] 病例创建成功: id=%d, user=%d", c.ID, userID)
	return c.ID, nil
}

// ReplaceCase 用新提交的数据覆盖已有病例
// 只用于草稿重新提交，病例接口本身不提供修改
func (s *CaseService) ReplaceCase(ctx context.Context, userID, caseID int64, raw json.RawMessage) error {
	c, err := buildCase(raw)
	if err != nil {
		return err
	}

	affected, err := s.caseRepo.UpdateByIDAndUser(ctx, caseID, userID, contentColumns(c))
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// ListCases 获取用户的全部病例，最新的在前
func (s *CaseService) ListCases(ctx context.Context, userID int64) ([]CaseView, error) {
	cases, err := s.caseRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]CaseView, 0, len(cases))
	for i := range cases {
		views = append(views, toCaseView(&cases[i]))
	}
	return views, nil
}

// GetCase 获取单个病例
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - caseID: 病例ID
//
// 返回:
//   - *CaseView: 病例详情
//   - error: 不存在或不属于该用户时返回 ErrCaseNotFound
func (s *CaseService) GetCase(ctx context.Context, userID, caseID int64) (*CaseView, error) {
	c, err := s.caseRepo.GetByIDAndUser(ctx, caseID, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCaseNotFound
	}
	view := toCaseView(c)
	return &view, nil
}

// DeleteCase 删除病例
func (s *CaseService) DeleteCase(ctx context.Context, userID, caseID int64) error {
	affected, err := s.caseRepo.DeleteByIDAndUser(ctx, caseID, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCaseNotFound
	}
	log.Printf("[INFO] 病例已删除: id=%d, user=%d", caseID, userID)
	return nil
}

// buildCase 解析、校验提交的数据并填充病例的内容字段
func buildCase(raw json.RawMessage) (*model.Case, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, invalid("病例数据格式错误")
	}
	var p model.CasePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalid(fmt.Sprintf("病例数据格式错误: %v", err))
	}

	name := strings.TrimSpace(p.Patient.Name)
	var problems []string
	if name == "" {
		problems = append(problems, "患者姓名不能为空")
	}
	unit, unitOK := model.NormalizeDurationUnit(strings.TrimSpace(p.Symptoms.DurationUnit))
	if !p.Symptoms.Duration.Valid || p.Symptoms.Duration.Value <= 0 || !unitOK {
		problems = append(problems, "症状信息不完整")
	}
	if age := p.Patient.Age; age.Valid && (age.Value < 0 || age.Value > 120) {
		problems = append(problems, "患者年龄必须在0-120之间")
	}
	if err := invalid(problems...); err != nil {
		return nil, err
	}

	comorbidities, err := json.Marshal(jsonx.Dedupe(p.MedicalHistory.Comorbidities))
	if err != nil {
		return nil, err
	}
	pastHistory, err := json.Marshal(jsonx.Dedupe(p.MedicalHistory.PastHistory))
	if err != nil {
		return nil, err
	}

	var gender *string
	if g := strings.TrimSpace(p.Patient.Gender); g != "" {
		gender = &g
	}

	return &model.Case{
		PatientName:      name,
		Gender:           gender,
		Age:              p.Patient.Age.Ptr(),
		SymptomDuration:  p.Symptoms.Duration.Value,
		DurationUnit:     unit,
		Comorbidities:    string(comorbidities),
		PastHistory:      string(pastHistory),
		UltrasoundReport: p.Reports.Ultrasound,
		PathologyReport:  p.Reports.Pathology,
		CaseData:         datatypes.JSON(append([]byte(nil), raw...)),
	}, nil
}

// contentColumns 重新提交时要覆盖的列
func contentColumns(c *model.Case) map[string]interface{} {
	return map[string]interface{}{
		"patient_name":      c.PatientName,
		"gender":            c.Gender,
		"age":               c.Age,
		"symptom_duration":  c.SymptomDuration,
		"duration_unit":     c.DurationUnit,
		"comorbidities":     c.Comorbidities,
		"past_history":      c.PastHistory,
		"ultrasound_report": c.UltrasoundReport,
		"pathology_report":  c.PathologyReport,
		"case_data":         c.CaseData,
	}
}

// toCaseView 转换为返回给客户端的结构，JSON 列容错解析，单行数据异常不影响整体
func toCaseView(c *model.Case) CaseView {
	return CaseView{
		ID:               c.ID,
		PatientName:      c.PatientName,
		Gender:           c.Gender,
		Age:              c.Age,
		SymptomDuration:  c.SymptomDuration,
		DurationUnit:     c.DurationUnit,
		Comorbidities:    jsonx.Tags(c.Comorbidities),
		PastHistory:      jsonx.Tags(c.PastHistory),
		UltrasoundReport: c.UltrasoundReport,
		PathologyReport:  c.PathologyReport,
		CaseData:         jsonx.Object([]byte(c.CaseData)),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// Record 把病例转换为草稿记录，用于修改后重新提交
func (v *CaseView) Record() draft.Record {
	rec := draft.NewRecord(v.UpdatedAt)
	rec.ID = strconv.FormatInt(v.ID, 10)
	rec.CreateTime = v.CreatedAt
	rec.StepCompleted = draft.TotalSteps
	rec.BasicInfo.Name = v.PatientName
	if v.Gender != nil {
		rec.BasicInfo.Gender = *v.Gender
	}
	if v.Age != nil {
		rec.BasicInfo.Age = model.IntValue(*v.Age)
	}
	if v.SymptomDuration > 0 {
		rec.Symptoms.Duration = model.IntValue(v.SymptomDuration)
	}
	rec.Symptoms.DurationUnit = v.DurationUnit
	rec.Comorbidities = v.Comorbidities
	rec.PastHistory = v.PastHistory
	rec.ImagingReport.DetailReport = v.UltrasoundReport
	rec.PathologyReport.Diagnosis = v.PathologyReport
	return rec
}

// Collection 返回用户的病例集合，供服务端草稿提交使用
func (s *CaseService) Collection(userID int64) draft.Collection {
	return &caseCollection{service: s, userID: userID}
}

// caseCollection 以数据库为存储的已完成病例集合
// 草稿 ID 为数字时视为已有病例并原地更新，其余情况新建病例
type caseCollection struct {
	service *CaseService
	userID  int64
}

func (c *caseCollection) Upsert(ctx context.Context, rec *draft.Record) error {
	raw, err := json.Marshal(rec.Payload())
	if err != nil {
		return err
	}

	if id, ok := parseCaseID(rec.ID); ok {
		return c.service.ReplaceCase(ctx, c.userID, id, raw)
	}

	id, err := c.service.CreateCase(ctx, c.userID, raw)
	if err != nil {
		return err
	}
	rec.ID = strconv.FormatInt(id, 10)
	return nil
}

func (c *caseCollection) Delete(ctx context.Context, id string) (bool, error) {
	caseID, ok := parseCaseID(id)
	if !ok {
		return false, nil
	}
	if err := c.service.DeleteCase(ctx, c.userID, caseID); err != nil {
		if errors.Is(err, ErrCaseNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func parseCaseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
