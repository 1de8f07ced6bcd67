package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"casebook-server/internal/model"
	"casebook-server/pkg/jsonx"
)

// 草稿相关错误
var (
	ErrUnknownSection = errors.New("未知的草稿分区")
	ErrInvalidField   = errors.New("草稿字段格式错误")
	ErrInvalidStep    = errors.New("无效的步骤序号")
	ErrMissingID      = errors.New("病例集合未分配 ID")
)

// Slot 草稿槽位，一个槽位只保存一份草稿
type Slot interface {
	// Load 读取草稿，槽位为空时返回 nil, nil
	Load(ctx context.Context) (*Record, error)
	// Save 覆盖保存草稿
	Save(ctx context.Context, rec *Record) error
	// Clear 清空槽位
	Clear(ctx context.Context) error
}

// Collection 已完成病例集合
type Collection interface {
	// Upsert 保存病例，ID 已存在时原地更新
	// rec.ID 为空时由集合分配并回写
	Upsert(ctx context.Context, rec *Record) error
	// Delete 删除病例，不存在时返回 false
	Delete(ctx context.Context, id string) (bool, error)
}

// Problem 一条校验问题
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 提交时的校验失败，包含全部问题
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages(), "；")
}

// Messages 返回全部问题的提示文本
func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Message)
	}
	return msgs
}

// Manager 草稿生命周期管理
// 不支持并发使用，服务端每个请求创建一个实例
type Manager struct {
	slot   Slot
	cases  Collection
	newID  func() string
	now    func() time.Time
	record Record
}

// Option Manager 的可选配置
type Option func(*Manager)

// WithIDGenerator 提交时由客户端生成病例 ID（离线模式）
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// WithClock 替换时间来源
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) { m.now = fn }
}

// NewManager 创建草稿管理器，初始为空草稿
// 参数:
//   - slot: 草稿槽位
//   - cases: 已完成病例集合
//   - opts: 可选配置
//
// 返回:
//   - *Manager: 管理器实例，需要调用 Load 恢复已保存的草稿
func NewManager(slot Slot, cases Collection, opts ...Option) *Manager {
	m := &Manager{
		slot:  slot,
		cases: cases,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.record = NewRecord(m.now())
	return m
}

// Load 从槽位恢复草稿，槽位为空时保持空草稿
func (m *Manager) Load(ctx context.Context) error {
	rec, err := m.slot.Load(ctx)
	if err != nil {
		return fmt.Errorf("读取草稿失败: %w", err)
	}
	if rec == nil {
		m.record = NewRecord(m.now())
		return nil
	}
	rec.normalize()
	m.record = *rec
	return nil
}

// Record 返回当前草稿的副本
func (m *Manager) Record() Record {
	rec := m.record
	rec.Comorbidities = append([]string(nil), m.record.Comorbidities...)
	rec.PastHistory = append([]string(nil), m.record.PastHistory...)
	rec.ImagingReport.Files = append([]string(nil), m.record.ImagingReport.Files...)
	rec.PathologyReport.Files = append([]string(nil), m.record.PathologyReport.Files...)
	rec.normalize()
	return rec
}

// Open 把一份已完成的病例放回草稿槽位，用于修改后重新提交
func (m *Manager) Open(ctx context.Context, rec Record) error {
	rec.Status = StatusDraft
	rec.UpdateTime = m.now()
	rec.normalize()
	m.record = rec
	return m.Persist(ctx)
}

// UpdateSection 合并分区字段并立即保存
// 对象分区逐字段合并；标签分区用 fields["values"] 整体替换并去重。
// 分区未知或字段类型不对时不修改草稿。
// 保存失败时内存中的修改保留，可以调用 Persist 重试。
// 参数:
//   - ctx: 上下文
//   - section: 分区名称
//   - fields: 要合并的字段
//
// 返回:
//   - error: ErrUnknownSection、ErrInvalidField 或保存错误
func (m *Manager) UpdateSection(ctx context.Context, section string, fields map[string]any) error {
	next, err := mergeSection(m.record, section, fields)
	if err != nil {
		return err
	}
	next.UpdateTime = m.now()
	m.record = next
	return m.Persist(ctx)
}

// MarkStepComplete 记录已完成的步骤，只会前进不会后退
func (m *Manager) MarkStepComplete(ctx context.Context, step int) error {
	if step < 0 || step > TotalSteps {
		return fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	if step > m.record.StepCompleted {
		m.record.StepCompleted = step
	}
	m.record.UpdateTime = m.now()
	return m.Persist(ctx)
}

// ValidateRequired 检查必填项，按固定顺序返回全部问题
// 选填分区不影响结果
func (m *Manager) ValidateRequired() []Problem {
	return validate(m.record)
}

// Submit 校验并提交草稿
// 校验失败返回 *ValidationError，草稿不变；
// 写入病例集合成功后才清空槽位
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - string: 病例 ID
//   - error: 校验错误或保存错误
func (m *Manager) Submit(ctx context.Context) (string, error) {
	if problems := validate(m.record); len(problems) > 0 {
		return "", &ValidationError{Problems: problems}
	}

	rec := m.Record()
	now := m.now()
	resubmit := rec.ID != ""
	if !resubmit && m.newID != nil {
		rec.ID = m.newID()
	}
	if !resubmit {
		rec.CreateTime = now
	}
	rec.UpdateTime = now
	rec.Status = StatusCompleted
	rec.BasicInfo.Name = strings.TrimSpace(rec.BasicInfo.Name)
	rec.Symptoms.DurationUnit, _ = model.NormalizeDurationUnit(rec.Symptoms.DurationUnit)

	if err := m.cases.Upsert(ctx, &rec); err != nil {
		return "", fmt.Errorf("提交病例失败: %w", err)
	}
	if rec.ID == "" {
		return "", ErrMissingID
	}

	m.record = NewRecord(now)
	if err := m.slot.Clear(ctx); err != nil {
		// 病例已经保存，草稿残留只影响下次打开
		log.Printf("[WARN] 清空草稿失败: %v", err)
	}
	return rec.ID, nil
}

// DeleteCase 从已完成病例集合中删除，不存在或出错时返回 false
func (m *Manager) DeleteCase(ctx context.Context, id string) bool {
	ok, err := m.cases.Delete(ctx, id)
	if err != nil {
		log.Printf("[WARN] 删除病例 %s 失败: %v", id, err)
		return false
	}
	return ok
}

// Reset 恢复为空草稿并清空槽位
func (m *Manager) Reset(ctx context.Context) error {
	m.record = NewRecord(m.now())
	if err := m.slot.Clear(ctx); err != nil {
		return fmt.Errorf("清空草稿失败: %w", err)
	}
	return nil
}

// Persist 把内存中的草稿写入槽位
func (m *Manager) Persist(ctx context.Context) error {
	rec := m.Record()
	if err := m.slot.Save(ctx, &rec); err != nil {
		return fmt.Errorf("保存草稿失败: %w", err)
	}
	return nil
}

func validate(rec Record) []Problem {
	var problems []Problem
	add := func(field, msg string) {
		problems = append(problems, Problem{Field: field, Message: msg})
	}

	if strings.TrimSpace(rec.BasicInfo.Name) == "" {
		add("basicInfo.name", "请输入患者姓名")
	}
	if strings.TrimSpace(rec.BasicInfo.Gender) == "" {
		add("basicInfo.gender", "请选择性别")
	}
	if age := rec.BasicInfo.Age; !age.Valid || age.Value < 0 || age.Value > 120 {
		add("basicInfo.age", "请输入有效年龄（0-120岁）")
	}
	if d := rec.Symptoms.Duration; !d.Valid || d.Value <= 0 {
		add("symptoms.duration", "请完整填写症状发现时间")
	}
	if _, ok := model.NormalizeDurationUnit(rec.Symptoms.DurationUnit); !ok {
		add("symptoms.durationUnit", "请选择时间单位（天/周/月/年）")
	}
	return problems
}

func mergeSection(rec Record, section string, fields map[string]any) (Record, error) {
	var err error
	switch section {
	case SectionBasicInfo:
		rec.BasicInfo, err = mergeObject(rec.BasicInfo, fields)
	case SectionSymptoms:
		rec.Symptoms, err = mergeObject(rec.Symptoms, fields)
	case SectionImagingReport:
		rec.ImagingReport, err = mergeObject(rec.ImagingReport, fields)
	case SectionPathologyReport:
		rec.PathologyReport, err = mergeObject(rec.PathologyReport, fields)
	case SectionComorbidities:
		rec.Comorbidities, err = tagValues(fields)
	case SectionPastHistory:
		rec.PastHistory, err = tagValues(fields)
	default:
		return rec, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	if err != nil {
		return rec, err
	}
	rec.normalize()
	return rec, nil
}

// mergeObject 把 fields 覆盖到 current 上，未知字段或类型不匹配时报错
func mergeObject[T any](current T, fields map[string]any) (T, error) {
	base, err := json.Marshal(current)
	if err != nil {
		return current, err
	}
	merged := map[string]any{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return current, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	var out T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return out, nil
}

func tagValues(fields map[string]any) ([]string, error) {
	raw, ok := fields["values"]
	if !ok {
		return nil, fmt.Errorf("%w: 缺少 values", ErrInvalidField)
	}
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return jsonx.Dedupe(v), nil
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: 标签必须是字符串", ErrInvalidField)
			}
			tags = append(tags, s)
		}
		return jsonx.Dedupe(tags), nil
	default:
		return nil, fmt.Errorf("%w: values 必须是列表", ErrInvalidField)
	}
}
