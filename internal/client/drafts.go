package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"casebook-server/internal/draft"
)

// DraftState 服务端草稿及填写页面需要的选项
type DraftState struct {
	Draft   draft.Record `json:"draft"`
	Steps   []string     `json:"steps"`
	Options struct {
		Comorbidities []string `json:"comorbidities"`
		PastHistory   []string `json:"pastHistory"`
	} `json:"options"`
}

// draftEnvelope 草稿写接口统一返回最新草稿
type draftEnvelope struct {
	Draft draft.Record `json:"draft"`
}

// GetDraft 获取服务端草稿
func (c *Client) GetDraft(ctx context.Context) (*DraftState, error) {
	var out DraftState
	if err := c.call(ctx, http.MethodGet, "/api/drafts", nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDraftSection 合并草稿分区字段
func (c *Client) UpdateDraftSection(ctx context.Context, section string, fields map[string]any) (draft.Record, error) {
	var out draftEnvelope
	path := "/api/drafts/" + url.PathEscape(section)
	if err := c.call(ctx, http.MethodPatch, path, fields, true, &out); err != nil {
		return draft.Record{}, err
	}
	return out.Draft, nil
}

// MarkDraftStep 标记步骤已完成
func (c *Client) MarkDraftStep(ctx context.Context, step int) (draft.Record, error) {
	var out draftEnvelope
	body := map[string]int{"step": step}
	if err := c.call(ctx, http.MethodPost, "/api/drafts/steps", body, true, &out); err != nil {
		return draft.Record{}, err
	}
	return out.Draft, nil
}

// ValidateDraft 检查草稿必填项
func (c *Client) ValidateDraft(ctx context.Context) ([]draft.Problem, error) {
	var out struct {
		Valid    bool            `json:"valid"`
		Problems []draft.Problem `json:"problems"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/drafts/validation", nil, true, &out); err != nil {
		return nil, err
	}
	return out.Problems, nil
}

// SubmitDraft 提交服务端草稿，返回病例ID
func (c *Client) SubmitDraft(ctx context.Context) (int64, error) {
	var out struct {
		CaseID int64 `json:"caseId"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/drafts/submit", nil, true, &out); err != nil {
		return 0, err
	}
	return out.CaseID, nil
}

// ResetDraft 清空服务端草稿
func (c *Client) ResetDraft(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/api/drafts", nil, true, nil)
}

// EditCase 把已提交的病例放回服务端草稿
func (c *Client) EditCase(ctx context.Context, caseID int64) (draft.Record, error) {
	var out draftEnvelope
	path := fmt.Sprintf("/api/cases/%d/draft", caseID)
	if err := c.call(ctx, http.MethodPost, path, nil, true, &out); err != nil {
		return draft.Record{}, err
	}
	return out.Draft, nil
}
