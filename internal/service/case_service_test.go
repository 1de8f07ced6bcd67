package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casebook-server/internal/model"
)

const validCase = `{
	"patient": {"name": " 张三 ", "gender": "male", "age": "56"},
	"symptoms": {"duration": 3, "durationUnit": "月"},
	"medicalHistory": {"comorbidities": ["高血压", "糖尿病", "高血压"], "pastHistory": ["黄疸"]},
	"reports": {"ultrasound": "胆囊多发结石", "pathology": ""},
	"extra": {"source": "v2"}
}`

func TestCreateCase_StoresColumnsAndPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.cases.CreateCase(ctx, 1, json.RawMessage(validCase))
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := env.cases.GetCase(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "张三", got.PatientName)
	require.NotNil(t, got.Age)
	assert.Equal(t, 56, *got.Age)
	assert.Equal(t, 3, got.SymptomDuration)
	assert.Equal(t, model.DurationUnitMonth, got.DurationUnit)
	assert.Equal(t, []string{"高血压", "糖尿病"}, got.Comorbidities)
	assert.Equal(t, []string{"黄疸"}, got.PastHistory)
	assert.Equal(t, "胆囊多发结石", got.UltrasoundReport)
	// 完整数据原样保存，包括未知字段
	assert.Equal(t, map[string]any{"source": "v2"}, got.CaseData["extra"])
}

func TestCreateCase_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"blank name", `{"patient":{"name":"   "},"symptoms":{"duration":1,"durationUnit":"day"}}`, []string{"患者姓名不能为空"}},
		{"missing duration", `{"patient":{"name":"a"},"symptoms":{"durationUnit":"day"}}`, []string{"症状信息不完整"}},
		{"missing unit", `{"patient":{"name":"a"},"symptoms":{"duration":2}}`, []string{"症状信息不完整"}},
		{"unknown unit", `{"patient":{"name":"a"},"symptoms":{"duration":2,"durationUnit":"decade"}}`, []string{"症状信息不完整"}},
		{"age out of range", `{"patient":{"name":"a","age":121},"symptoms":{"duration":2,"durationUnit":"day"}}`, []string{"患者年龄必须在0-120之间"}},
		{"everything wrong", `{"patient":{"name":"","age":-1},"symptoms":{}}`, []string{"患者姓名不能为空", "症状信息不完整", "患者年龄必须在0-120之间"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.cases.CreateCase(ctx, 1, json.RawMessage(tt.body))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.want, ve.Problems)
		})
	}

	for _, body := range []string{``, `[]`, `{"patient":{"name":"a","age":"abc"}}`} {
		_, err := env.cases.CreateCase(ctx, 1, json.RawMessage(body))
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, body)
	}

	cases, err := env.cases.ListCases(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestListCases_NewestFirstAndScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.cases.CreateCase(ctx, 1, json.RawMessage(validCase))
	require.NoError(t, err)
	second, err := env.cases.CreateCase(ctx, 1, json.RawMessage(validCase))
	require.NoError(t, err)
	_, err = env.cases.CreateCase(ctx, 2, json.RawMessage(validCase))
	require.NoError(t, err)

	cases, err := env.cases.ListCases(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, second, cases[0].ID)
	assert.Equal(t, first, cases[1].ID)

	_, err = env.cases.GetCase(ctx, 2, first)
	assert.ErrorIs(t, err, ErrCaseNotFound)
	assert.ErrorIs(t, env.cases.DeleteCase(ctx, 2, first), ErrCaseNotFound)
}

func TestListCases_MalformedRowsNeverFail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rows := []model.Case{
		{UserID: 1, PatientName: "a", SymptomDuration: 1, DurationUnit: "day", Comorbidities: "高血压", PastHistory: "['黄疸']", CaseData: []byte(`{patient: {name: 'a'}}`)},
		{UserID: 1, PatientName: "b", SymptomDuration: 1, DurationUnit: "day", Comorbidities: "[broken", PastHistory: "", CaseData: []byte(`not json`)},
	}
	require.NoError(t, env.db.Create(&rows).Error)

	cases, err := env.cases.ListCases(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	byName := map[string]CaseView{}
	for _, c := range cases {
		byName[c.PatientName] = c
	}
	assert.Equal(t, []string{"高血压"}, byName["a"].Comorbidities)
	assert.Equal(t, []string{"黄疸"}, byName["a"].PastHistory)
	assert.Equal(t, map[string]any{"name": "a"}, byName["a"].CaseData["patient"])

	assert.Equal(t, []string{}, byName["b"].PastHistory)
	assert.NotNil(t, byName["b"].CaseData)
	assert.Empty(t, byName["b"].CaseData)
}

func TestDeleteCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.cases.CreateCase(ctx, 1, json.RawMessage(validCase))
	require.NoError(t, err)
	require.NoError(t, env.cases.DeleteCase(ctx, 1, id))
	assert.ErrorIs(t, env.cases.DeleteCase(ctx, 1, id), ErrCaseNotFound)
	_, err = env.cases.GetCase(ctx, 1, id)
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestReplaceCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.cases.CreateCase(ctx, 1, json.RawMessage(validCase))
	require.NoError(t, err)

	updated := `{"patient":{"name":"张三","gender":"male"},"symptoms":{"duration":2,"durationUnit":"week"},"medicalHistory":{"comorbidities":[]}}`
	require.NoError(t, env.cases.ReplaceCase(ctx, 1, id, json.RawMessage(updated)))

	got, err := env.cases.GetCase(ctx, 1, id)
	require.NoError(t, err)
	assert.Nil(t, got.Age)
	assert.Equal(t, 2, got.SymptomDuration)
	assert.Equal(t, model.DurationUnitWeek, got.DurationUnit)
	assert.Empty(t, got.Comorbidities)
	assert.Nil(t, got.CaseData["extra"])

	assert.ErrorIs(t, env.cases.ReplaceCase(ctx, 2, id, json.RawMessage(updated)), ErrCaseNotFound)
}
