package jsonx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTags(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, []string{}},
		{"empty string", "", []string{}},
		{"strict json list", `["高血压","糖尿病"]`, []string{"高血压", "糖尿病"}},
		{"bytes", []byte(`["胰腺炎"]`), []string{"胰腺炎"}},
		{"raw message", json.RawMessage(`["黄疸"]`), []string{"黄疸"}},
		{"native string slice", []string{"黄疸", "黄疸", " "}, []string{"黄疸"}},
		{"native any slice", []any{"黄疸", 3, nil}, []string{"黄疸", "3"}},
		{"single quotes repaired", `['高血压', '冠心病/心梗']`, []string{"高血压", "冠心病/心梗"}},
		{"bare string wrapped", "高血压", []string{"高血压"}},
		{"comma separated kept whole", "高血压,糖尿病", []string{"高血压,糖尿病"}},
		{"json string", `"糖尿病"`, []string{"糖尿病"}},
		{"double encoded", `"[\"糖尿病\"]"`, []string{"糖尿病"}},
		{"duplicates removed", `["黄疸","黄疸","胰腺炎"]`, []string{"黄疸", "胰腺炎"}},
		{"object is unknown shape", `{"a":1}`, []string{}},
		{"unrepairable list", `[高血压, 糖尿病]`, []string{}},
		{"number is unknown shape", `42`, []string{}},
		{"unsupported type", 42, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tags(tt.in)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObject(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		got := Object(`{"patient":{"name":"张三"}}`)
		assert.Equal(t, map[string]any{"patient": map[string]any{"name": "张三"}}, got)
	})

	t.Run("repaired bare keys and quotes", func(t *testing.T) {
		got := Object(`{name: '张三', age: 45}`)
		assert.Equal(t, map[string]any{"name": "张三", "age": float64(45)}, got)
	})

	t.Run("colon inside value is untouched", func(t *testing.T) {
		got := Object(`{note: '复查 10:30'}`)
		assert.Equal(t, map[string]any{"note": "复查 10:30"}, got)
	})

	t.Run("native map passes through", func(t *testing.T) {
		in := map[string]any{"a": "b"}
		assert.Equal(t, in, Object(in))
	})

	t.Run("defaults", func(t *testing.T) {
		for _, in := range []any{nil, "", "not json", `["a"]`, []byte("{broken"), 7} {
			got := Object(in)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		}
	})
}

func TestRepair(t *testing.T) {
	assert.Equal(t, `{"a":"x","b_2":["y"]}`, Repair(`{a:'x',b_2:['y']}`))
	assert.Equal(t, `["x"]`, Repair(`['x']`))
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedupe([]string{"a", " a ", "", "b", "a"}))
	assert.Equal(t, []string{}, Dedupe(nil))
}
