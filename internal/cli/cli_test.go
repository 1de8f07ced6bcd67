package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casebook-server/internal/apitest"
	"casebook-server/internal/client"
	"casebook-server/internal/draft"
)

// run 在指定配置目录下执行一次命令
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--home", home}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := run(t, home, args...)
	require.NoError(t, err, out)
	return out
}

var submittedID = regexp.MustCompile(`ID: (\S+)`)

func TestStore_DefaultsAndAuth(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenStore(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
	assert.Equal(t, DefaultServerURL, s.Config().Server.URL)
	assert.False(t, s.IsLoggedIn())

	require.NoError(t, s.SetServerURL("http://example.test"))
	require.NoError(t, s.SaveAuth(AuthConfig{Token: "tok", UserID: 7, OpenID: "o", Name: "Bob"}))

	reopened, err := OpenStore(dir)
	require.NoError(t, err)
	cfg := reopened.Config()
	assert.Equal(t, "http://example.test", cfg.Server.URL)
	assert.Equal(t, int64(7), cfg.Auth.UserID)
	assert.True(t, reopened.IsLoggedIn())

	require.NoError(t, reopened.ClearAuth())
	assert.False(t, reopened.IsLoggedIn())
	assert.Equal(t, filepath.Join(dir, "draft.json"), reopened.DraftPath())
}

func TestSectionFields(t *testing.T) {
	fields, err := sectionFields(draft.SectionComorbidities, []string{"高血压", "糖尿病"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"values": []string{"高血压", "糖尿病"}}, fields)

	fields, err = sectionFields(draft.SectionBasicInfo, []string{`{"name":"张三"}`})
	require.NoError(t, err)
	assert.Equal(t, "张三", fields["name"])

	_, err = sectionFields(draft.SectionBasicInfo, []string{"张三"})
	assert.Error(t, err)
	_, err = sectionFields(draft.SectionSymptoms, nil)
	assert.Error(t, err)
}

func TestOfflineDraftLifecycle(t *testing.T) {
	home := t.TempDir()

	out := mustRun(t, home, "--offline", "draft", "validate")
	assert.Contains(t, out, "请输入患者姓名")

	mustRun(t, home, "--offline", "draft", "set", "basicInfo", `{"name":"张三","gender":"男","age":"45"}`)
	mustRun(t, home, "--offline", "draft", "set", "symptoms", `{"duration":3,"durationUnit":"天"}`)
	mustRun(t, home, "--offline", "draft", "set", "comorbidities", "高血压", "高血压", "糖尿病")
	out = mustRun(t, home, "--offline", "draft", "step", "3")
	assert.Contains(t, out, "● 3.合并疾病")

	_, err := run(t, home, "--offline", "draft", "set", "unknown", `{}`)
	assert.ErrorIs(t, err, draft.ErrUnknownSection)

	out = mustRun(t, home, "--offline", "draft", "validate")
	assert.Contains(t, out, "可以提交")

	out = mustRun(t, home, "--offline", "draft", "submit")
	m := submittedID.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]
	assert.Regexp(t, `^case_[0-9a-f]{32}$`, id)

	// 提交后草稿清空
	_, err = os.Stat(filepath.Join(home, "draft.json"))
	assert.True(t, os.IsNotExist(err))

	out = mustRun(t, home, "--offline", "cases", "list")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "3天")

	records, err := draft.NewFileCollection(filepath.Join(home, "cases.json")).List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"高血压", "糖尿病"}, records[0].Comorbidities)
	assert.Equal(t, draft.StatusCompleted, records[0].Status)

	// 修改后重新提交，ID 不变
	mustRun(t, home, "--offline", "cases", "edit", id)
	mustRun(t, home, "--offline", "draft", "set", "basicInfo", `{"name":"张三丰"}`)
	out = mustRun(t, home, "--offline", "draft", "submit")
	assert.Contains(t, out, "ID: "+id)

	out = mustRun(t, home, "--offline", "cases", "show", id)
	assert.Contains(t, out, "张三丰")

	mustRun(t, home, "--offline", "cases", "delete", id)
	_, err = run(t, home, "--offline", "cases", "delete", id)
	assert.Error(t, err)
	out = mustRun(t, home, "--offline", "cases")
	assert.Contains(t, out, "暂无离线病例")
}

func TestOfflineSubmit_Incomplete(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "--offline", "draft", "set", "basicInfo", `{"name":"李四"}`)

	_, err := run(t, home, "--offline", "draft", "submit")
	var ve *draft.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Messages(), "请选择性别")

	// 草稿保留
	out := mustRun(t, home, "--offline", "draft")
	assert.Contains(t, out, "李四")

	mustRun(t, home, "--offline", "draft", "reset")
	out = mustRun(t, home, "--offline", "draft")
	assert.NotContains(t, out, "李四")
}

func TestOfflineReset_CorruptDraft(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "draft.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := run(t, home, "--offline", "draft")
	require.Error(t, err)

	out := mustRun(t, home, "--offline", "draft", "reset")
	assert.Contains(t, out, "草稿已清空")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	out = mustRun(t, home, "--offline", "draft", "validate")
	assert.Contains(t, out, "请输入患者姓名")
}

func TestOnlineFlow(t *testing.T) {
	srv := apitest.New(t)
	home := t.TempDir()

	_, err := run(t, home, "--server", srv.URL, "cases")
	assert.ErrorIs(t, err, client.ErrNotLoggedIn)

	out := mustRun(t, home, "--server", srv.URL, "login", "test_bob", "--name", "Bob")
	assert.Contains(t, out, "欢迎 Bob")

	// 服务器地址已保存，后续命令不需要再指定
	out = mustRun(t, home, "status")
	assert.Contains(t, out, "✓ 已登录")
	assert.Contains(t, out, srv.URL)

	mustRun(t, home, "profile", "update", "--age", "36", "--phone", "13800000000")
	out = mustRun(t, home, "profile")
	assert.Contains(t, out, `"age": 36`)

	mustRun(t, home, "draft", "set", "basicInfo", `{"name":"王五","gender":"男","age":60}`)
	mustRun(t, home, "draft", "set", "symptoms", `{"duration":2,"durationUnit":"月"}`)
	out = mustRun(t, home, "draft", "submit")
	m := submittedID.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out = mustRun(t, home, "cases", "list")
	assert.Contains(t, out, "王五")
	assert.Contains(t, out, "2个月")

	mustRun(t, home, "cases", "edit", id)
	mustRun(t, home, "draft", "set", "symptoms", `{"duration":3}`)
	out = mustRun(t, home, "draft", "submit")
	assert.Contains(t, out, "ID: "+id)

	out = mustRun(t, home, "cases", "show", id)
	assert.Contains(t, out, `"symptom_duration": 3`)

	srv.Completer.Set("建议低脂饮食，定期复查。", nil)
	out = mustRun(t, home, "chat", "send", "胆囊结石饮食要注意什么")
	assert.Contains(t, out, "建议低脂饮食")
	out = mustRun(t, home, "chat", "sessions")
	assert.Contains(t, out, "胆囊结石饮食要注意什么")

	mustRun(t, home, "cases", "delete", id)
	out = mustRun(t, home, "cases")
	assert.Contains(t, out, "暂无病例")

	out = mustRun(t, home, "logout")
	assert.Contains(t, out, "已登出")
	out = mustRun(t, home, "logout")
	assert.Contains(t, out, "当前未登录")
}
