package draft

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casebook-server/internal/model"
)

var errBoom = errors.New("boom")

type memSlot struct {
	rec      *Record
	failSave bool
	saves    int
}

func (s *memSlot) Load(context.Context) (*Record, error) {
	if s.rec == nil {
		return nil, nil
	}
	cp := *s.rec
	return &cp, nil
}

func (s *memSlot) Save(_ context.Context, rec *Record) error {
	if s.failSave {
		return errBoom
	}
	cp := *rec
	s.rec = &cp
	s.saves++
	return nil
}

func (s *memSlot) Clear(context.Context) error {
	s.rec = nil
	return nil
}

type memCollection struct {
	records    map[string]Record
	failUpsert bool
	failDelete bool
	seq        int
}

func newMemCollection() *memCollection {
	return &memCollection{records: map[string]Record{}}
}

func (c *memCollection) Upsert(_ context.Context, rec *Record) error {
	if c.failUpsert {
		return errBoom
	}
	if rec.ID == "" {
		c.seq++
		rec.ID = fmt.Sprintf("%d", c.seq)
	}
	c.records[rec.ID] = *rec
	return nil
}

func (c *memCollection) Delete(_ context.Context, id string) (bool, error) {
	if c.failDelete {
		return false, errBoom
	}
	if _, ok := c.records[id]; !ok {
		return false, nil
	}
	delete(c.records, id)
	return true, nil
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func fillValid(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"name": "张三", "gender": "男", "age": 45}))
	require.NoError(t, m.UpdateSection(ctx, SectionSymptoms, map[string]any{"duration": "3", "durationUnit": "天"}))
}

func TestUpdateSection_PersistsMergedRecord(t *testing.T) {
	ctx := context.Background()
	slot := &memSlot{}
	m := NewManager(slot, newMemCollection(), WithClock(fixedClock()))

	require.NoError(t, m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"gender": "女"}))
	require.NoError(t, m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"age": 60}))
	require.NoError(t, m.UpdateSection(ctx, SectionComorbidities, map[string]any{"values": []any{"高血压", "糖尿病", "高血压"}}))

	rec := m.Record()
	assert.Equal(t, "女", rec.BasicInfo.Gender)
	assert.Equal(t, model.IntValue(60), rec.BasicInfo.Age)
	assert.Equal(t, []string{"高血压", "糖尿病"}, rec.Comorbidities)

	// 新的管理器从同一个槽位恢复出相同的草稿
	resumed := NewManager(slot, newMemCollection())
	require.NoError(t, resumed.Load(ctx))
	assert.Equal(t, rec, resumed.Record())
}

func TestUpdateSection_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	slot := &memSlot{}
	m := NewManager(slot, newMemCollection())
	require.NoError(t, m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"gender": "男"}))
	before := m.Record()

	err := m.UpdateSection(ctx, "unknown", map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrUnknownSection)

	err = m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"age": "四十"})
	assert.ErrorIs(t, err, ErrInvalidField)

	err = m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"weight": 70})
	assert.ErrorIs(t, err, ErrInvalidField)

	err = m.UpdateSection(ctx, SectionPastHistory, map[string]any{"values": "黄疸"})
	assert.ErrorIs(t, err, ErrInvalidField)

	assert.Equal(t, before, m.Record())
	assert.Equal(t, 1, slot.saves)
}

func TestUpdateSection_PersistFailureKeepsEdit(t *testing.T) {
	ctx := context.Background()
	slot := &memSlot{failSave: true}
	m := NewManager(slot, newMemCollection())

	err := m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"name": "李四"})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "李四", m.Record().BasicInfo.Name)
	assert.Nil(t, slot.rec)

	slot.failSave = false
	require.NoError(t, m.Persist(ctx))
	require.NotNil(t, slot.rec)
	assert.Equal(t, "李四", slot.rec.BasicInfo.Name)
}

func TestMarkStepComplete_IsMonotonic(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&memSlot{}, newMemCollection())

	require.NoError(t, m.MarkStepComplete(ctx, 3))
	require.NoError(t, m.MarkStepComplete(ctx, 2))
	assert.Equal(t, 3, m.Record().StepCompleted)

	require.NoError(t, m.MarkStepComplete(ctx, 5))
	assert.Equal(t, 5, m.Record().StepCompleted)

	assert.ErrorIs(t, m.MarkStepComplete(ctx, TotalSteps+1), ErrInvalidStep)
	assert.ErrorIs(t, m.MarkStepComplete(ctx, -1), ErrInvalidStep)
}

func TestValidateRequired_ReportsAllProblemsInOrder(t *testing.T) {
	m := NewManager(&memSlot{}, newMemCollection())

	problems := m.ValidateRequired()
	fields := make([]string, 0, len(problems))
	for _, p := range problems {
		fields = append(fields, p.Field)
	}
	assert.Equal(t, []string{
		"basicInfo.name",
		"basicInfo.gender",
		"basicInfo.age",
		"symptoms.duration",
		"symptoms.durationUnit",
	}, fields)

	ctx := context.Background()
	require.NoError(t, m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"name": "张三", "gender": "男", "age": 121}))
	require.NoError(t, m.UpdateSection(ctx, SectionSymptoms, map[string]any{"duration": 0, "durationUnit": "hour"}))
	problems = m.ValidateRequired()
	require.Len(t, problems, 3)
	assert.Equal(t, "basicInfo.age", problems[0].Field)
	assert.Equal(t, "symptoms.duration", problems[1].Field)
	assert.Equal(t, "symptoms.durationUnit", problems[2].Field)
}

func TestValidateRequired_OptionalSectionsNeverBlock(t *testing.T) {
	m := NewManager(&memSlot{}, newMemCollection())
	fillValid(t, m)
	assert.Empty(t, m.ValidateRequired())
}

func TestSubmit_InvalidLeavesSlotAndCollection(t *testing.T) {
	ctx := context.Background()
	slot := &memSlot{}
	cases := newMemCollection()
	m := NewManager(slot, cases)
	require.NoError(t, m.UpdateSection(ctx, SectionBasicInfo, map[string]any{"gender": "男"}))

	id, err := m.Submit(ctx)
	assert.Empty(t, id)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 4)
	assert.Contains(t, verr.Error(), "请输入患者姓名")

	assert.NotNil(t, slot.rec)
	assert.Empty(t, cases.records)
}

func TestSubmit_ValidClearsSlot(t *testing.T) {
	ctx := context.Background()
	slot := &memSlot{}
	cases := newMemCollection()
	m := NewManager(slot, cases, WithIDGenerator(func() string { return "case_1" }), WithClock(fixedClock()))
	fillValid(t, m)

	id, err := m.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "case_1", id)
	assert.Nil(t, slot.rec)

	stored := cases.records["case_1"]
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, "day", stored.Symptoms.DurationUnit)
	assert.False(t, stored.CreateTime.IsZero())

	// 提交后回到空草稿
	assert.Equal(t, StatusDraft, m.Record().Status)
	assert.Empty(t, m.Record().ID)
}

func TestSubmit_CollectionAssignsID(t *testing.T) {
	ctx := context.Background()
	cases := newMemCollection()
	m := NewManager(&memSlot{}, cases)
	fillValid(t, m)

	id, err := m.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", id)
}

func TestSubmit_UpsertFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	slot := &memSlot{}
	cases := newMemCollection()
	cases.failUpsert = true
	m := NewManager(slot, cases, WithIDGenerator(func() string { return "case_x" }))
	fillValid(t, m)

	_, err := m.Submit(ctx)
	assert.ErrorIs(t, err, errBoom)
	require.NotNil(t, slot.rec)
	assert.Equal(t, "张三", slot.rec.BasicInfo.Name)
	assert.Equal(t, "张三", m.Record().BasicInfo.Name)
	assert.Empty(t, m.Record().ID)
}

func TestSubmit_ResubmitUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	cases := newMemCollection()
	m := NewManager(&memSlot{}, cases, WithIDGenerator(func() string { return "case_a" }), WithClock(fixedClock()))
	fillValid(t, m)

	id, err := m.Submit(ctx)
	require.NoError(t, err)
	first := cases.records[id]

	require.NoError(t, m.Open(ctx, first))
	require.NoError(t, m.UpdateSection(ctx, SectionPathologyReport, map[string]any{"diagnosis": "慢性胆囊炎"}))
	again, err := m.Submit(ctx)
	require.NoError(t, err)

	assert.Equal(t, id, again)
	assert.Len(t, cases.records, 1)
	assert.Equal(t, "慢性胆囊炎", cases.records[id].PathologyReport.Diagnosis)
	assert.Equal(t, first.CreateTime, cases.records[id].CreateTime)
	assert.True(t, cases.records[id].UpdateTime.After(first.UpdateTime))
}

func TestDeleteCase(t *testing.T) {
	ctx := context.Background()
	cases := newMemCollection()
	cases.records["case_1"] = Record{ID: "case_1"}
	m := NewManager(&memSlot{}, cases)

	assert.True(t, m.DeleteCase(ctx, "case_1"))
	assert.False(t, m.DeleteCase(ctx, "case_1"))

	cases.failDelete = true
	assert.False(t, m.DeleteCase(ctx, "case_2"))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	slot := &memSlot{}
	m := NewManager(slot, newMemCollection())
	fillValid(t, m)
	require.NoError(t, m.MarkStepComplete(ctx, 2))

	require.NoError(t, m.Reset(ctx))
	assert.Nil(t, slot.rec)
	assert.Equal(t, 0, m.Record().StepCompleted)
	assert.Empty(t, m.Record().BasicInfo.Name)
	assert.Equal(t, []string{}, m.Record().Comorbidities)
}

func TestRecord_ReturnsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&memSlot{}, newMemCollection())

	rec := NewRecord(time.Now())
	rec.ID = "case_1"
	rec.Comorbidities = []string{"高血压"}
	rec.ImagingReport.Files = []string{"ct.png"}
	rec.PathologyReport.Files = []string{"biopsy.pdf"}
	require.NoError(t, m.Open(ctx, rec))

	got := m.Record()
	got.Comorbidities[0] = "x"
	got.ImagingReport.Files[0] = "x"
	got.PathologyReport.Files[0] = "x"

	again := m.Record()
	assert.Equal(t, []string{"高血压"}, again.Comorbidities)
	assert.Equal(t, []string{"ct.png"}, again.ImagingReport.Files)
	assert.Equal(t, []string{"biopsy.pdf"}, again.PathologyReport.Files)
}

func TestPayload(t *testing.T) {
	rec := NewRecord(time.Now())
	rec.BasicInfo = BasicInfo{Name: " 王五 ", Gender: "男", Age: model.IntValue(50)}
	rec.Symptoms = Symptoms{Duration: model.IntValue(2), DurationUnit: "week"}
	rec.Comorbidities = []string{"高血压", "高血压"}
	rec.ImagingReport = ImagingReport{DetailReport: "胆囊壁增厚", Conclusion: "胆囊结石"}
	rec.PathologyReport = PathologyReport{Diagnosis: "慢性胆囊炎"}

	p := rec.Payload()
	assert.Equal(t, "王五", p.Patient.Name)
	assert.Equal(t, model.IntValue(2), p.Symptoms.Duration)
	assert.Equal(t, []string{"高血压"}, p.MedicalHistory.Comorbidities)
	assert.Equal(t, []string{}, p.MedicalHistory.PastHistory)
	assert.Equal(t, "胆囊壁增厚\n胆囊结石", p.Reports.Ultrasound)
	assert.Equal(t, "慢性胆囊炎", p.Reports.Pathology)
}

func TestFileSlotAndCollection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	slot := NewFileSlot(filepath.Join(dir, "draft.json"))
	cases := NewFileCollection(filepath.Join(dir, "completed_cases.json"))

	ids := []string{"case_1", "case_2"}
	next := 0
	newID := func() string {
		id := ids[next]
		next++
		return id
	}

	m := NewManager(slot, cases, WithIDGenerator(newID))
	require.NoError(t, m.Load(ctx))
	fillValid(t, m)

	// 重新打开后草稿仍在
	reopened := NewManager(slot, cases, WithIDGenerator(newID))
	require.NoError(t, reopened.Load(ctx))
	assert.Equal(t, "张三", reopened.Record().BasicInfo.Name)

	_, err := reopened.Submit(ctx)
	require.NoError(t, err)
	fillValid(t, reopened)
	_, err = reopened.Submit(ctx)
	require.NoError(t, err)

	loaded, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	list, err := cases.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "case_2", list[0].ID)
	assert.Equal(t, "case_1", list[1].ID)

	got, err := cases.Get(ctx, "case_1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, reopened.DeleteCase(ctx, "case_1"))
	assert.False(t, reopened.DeleteCase(ctx, "case_1"))
	list, err = cases.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
