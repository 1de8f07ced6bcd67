package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casebook-server/internal/apitest"
	"casebook-server/internal/draft"
	"casebook-server/internal/model"
	"casebook-server/internal/service"
	"casebook-server/pkg/util"
)

func loggedIn(t *testing.T, srv *apitest.Server) *Client {
	t.Helper()
	c := NewClient(srv.URL+"/", "")
	res, err := c.Login(context.Background(), &service.LoginRequest{
		Code:     "test_alice",
		UserInfo: &service.ProfileHint{NickName: "Alice"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, "test_openid_alice", res.UserInfo.OpenID)
	assert.Equal(t, "Alice", res.UserInfo.Name)
	c.SetToken(res.Token)
	return c
}

func samplePayload() model.CasePayload {
	return model.CasePayload{
		Patient:        model.PatientInfo{Name: "张三", Gender: "男", Age: model.IntValue(45)},
		Symptoms:       model.SymptomInfo{Duration: model.IntValue(3), DurationUnit: "天"},
		MedicalHistory: model.MedicalHistory{Comorbidities: []string{"高血压"}, PastHistory: []string{}},
		Reports:        model.Reports{Ultrasound: "胆囊结石"},
	}
}

func TestHealth(t *testing.T) {
	srv := apitest.New(t)
	assert.NoError(t, NewClient(srv.URL, "").Health(context.Background()))
}

func TestNotLoggedIn(t *testing.T) {
	srv := apitest.New(t)
	_, err := NewClient(srv.URL, "").ListCases(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestAPIError(t *testing.T) {
	srv := apitest.New(t)
	c := NewClient(srv.URL, "not-a-token")

	_, err := c.Profile(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Token 无效", apiErr.Message)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	c := loggedIn(t, apitest.New(t))

	user, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)

	user, err = c.UpdateProfile(ctx, &service.UpdateProfileRequest{
		Name: util.StringPtr("Alice Zhang"),
		Age:  &model.OptionalInt{Value: 30, Valid: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Zhang", user.Name)
	require.NotNil(t, user.Age)
	assert.Equal(t, 30, *user.Age)
}

func TestCaseLifecycle(t *testing.T) {
	ctx := context.Background()
	c := loggedIn(t, apitest.New(t))

	id, err := c.CreateCase(ctx, samplePayload())
	require.NoError(t, err)
	assert.Positive(t, id)

	cases, err := c.ListCases(ctx)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "张三", cases[0].PatientName)
	assert.Equal(t, []string{"高血压"}, cases[0].Comorbidities)

	got, err := c.GetCase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DurationUnitDay, got.DurationUnit)

	require.NoError(t, c.DeleteCase(ctx, id))
	_, err = c.GetCase(ctx, id)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestCreateCase_ValidationProblems(t *testing.T) {
	c := loggedIn(t, apitest.New(t))

	p := samplePayload()
	p.Patient.Name = ""
	p.Patient.Age = model.IntValue(200)
	_, err := c.CreateCase(context.Background(), p)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, []string{"患者姓名不能为空", "患者年龄必须在0-120之间"}, apiErr.Problems)
}

func TestDraftFlow(t *testing.T) {
	ctx := context.Background()
	c := loggedIn(t, apitest.New(t))

	state, err := c.GetDraft(ctx)
	require.NoError(t, err)
	assert.Equal(t, draft.StepNames, state.Steps)
	assert.Equal(t, draft.StatusDraft, state.Draft.Status)

	problems, err := c.ValidateDraft(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, problems)

	_, err = c.UpdateDraftSection(ctx, draft.SectionBasicInfo, map[string]any{"name": "李四", "gender": "女", "age": "52"})
	require.NoError(t, err)
	rec, err := c.UpdateDraftSection(ctx, draft.SectionSymptoms, map[string]any{"duration": 2, "durationUnit": "周"})
	require.NoError(t, err)
	assert.Equal(t, "李四", rec.BasicInfo.Name)

	rec, err = c.MarkDraftStep(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.StepCompleted)

	problems, err = c.ValidateDraft(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)

	id, err := c.SubmitDraft(ctx)
	require.NoError(t, err)

	rec, err = c.EditCase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "李四", rec.BasicInfo.Name)

	_, err = c.UpdateDraftSection(ctx, draft.SectionBasicInfo, map[string]any{"name": "李四四"})
	require.NoError(t, err)
	again, err := c.SubmitDraft(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, err := c.GetCase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "李四四", got.PatientName)

	require.NoError(t, c.ResetDraft(ctx))
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	srv := apitest.New(t)
	c := loggedIn(t, srv)

	srv.Completer.Set("<think>分析</think>多喝水，注意休息。", nil)
	reply, err := c.SendMessage(ctx, &service.SendMessageRequest{Message: "最近总是口渴怎么办"})
	require.NoError(t, err)
	assert.Equal(t, "多喝水，注意休息。", reply.AIResponse)
	assert.False(t, reply.Fallback)

	srv.Completer.Set("", errors.New("upstream down"))
	second, err := c.SendMessage(ctx, &service.SendMessageRequest{Message: "还需要检查什么", ChatID: &reply.ChatID})
	require.NoError(t, err)
	assert.Equal(t, reply.ChatID, second.ChatID)
	assert.True(t, second.Fallback)
	assert.Equal(t, service.FallbackReply, second.AIResponse)

	sessions, err := c.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "最近总是口渴怎么办", sessions[0].Title)

	messages, err := c.ListMessages(ctx, reply.ChatID)
	require.NoError(t, err)
	assert.Len(t, messages, 4)

	require.NoError(t, c.DeleteSession(ctx, reply.ChatID))
	sessions, err = c.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	c := loggedIn(t, apitest.New(t))

	require.NoError(t, c.Logout(ctx))
	_, err := c.Profile(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
