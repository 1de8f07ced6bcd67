package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"casebook-server/internal/draft"
	"casebook-server/internal/service"
	"casebook-server/pkg/response"
)

// DraftHandler 服务端草稿请求处理器
// 每个请求打开一次草稿管理器，修改立即写回 Redis
type DraftHandler struct {
	draftService *service.DraftService
}

// NewDraftHandler 创建 DraftHandler 实例
func NewDraftHandler(draftService *service.DraftService) *DraftHandler {
	return &DraftHandler{
		draftService: draftService,
	}
}

// open 打开当前用户的草稿，失败时直接写入响应
func (h *DraftHandler) open(c *gin.Context) (*draft.Manager, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	m, err := h.draftService.Open(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "读取草稿失败")
		return nil, false
	}
	return m, true
}

// GetDraft 获取当前草稿以及步骤和选项
// @Router /api/drafts [get]
func (h *DraftHandler) GetDraft(c *gin.Context) {
	m, ok := h.open(c)
	if !ok {
		return
	}

	response.Success(c, gin.H{
		"draft": m.Record(),
		"steps": draft.StepNames,
		"options": gin.H{
			"comorbidities": draft.ComorbidityOptions,
			"pastHistory":   draft.PastHistoryOptions,
		},
	})
}

// UpdateSection 合并一个分区的字段
// 标签分区的请求体为 {"values": [...]}
// @Param section path string true "分区名称"
// @Router /api/drafts/{section} [patch]
func (h *DraftHandler) UpdateSection(c *gin.Context) {
	m, ok := h.open(c)
	if !ok {
		return
	}

	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	if err := m.UpdateSection(c.Request.Context(), c.Param("section"), fields); err != nil {
		respondDraftError(c, err, "保存草稿失败")
		return
	}

	response.Success(c, gin.H{"draft": m.Record()})
}

// markStepRequest 标记步骤完成请求
type markStepRequest struct {
	Step *int `json:"step"`
}

// MarkStep 标记步骤完成
// @Router /api/drafts/steps [post]
func (h *DraftHandler) MarkStep(c *gin.Context) {
	m, ok := h.open(c)
	if !ok {
		return
	}

	var req markStepRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Step == nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	if err := m.MarkStepComplete(c.Request.Context(), *req.Step); err != nil {
		respondDraftError(c, err, "保存草稿失败")
		return
	}

	response.Success(c, gin.H{"draft": m.Record()})
}

// Validate 检查必填项
// @Router /api/drafts/validation [get]
func (h *DraftHandler) Validate(c *gin.Context) {
	m, ok := h.open(c)
	if !ok {
		return
	}

	problems := m.ValidateRequired()
	if problems == nil {
		problems = []draft.Problem{}
	}
	response.Success(c, gin.H{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}

// Submit 提交草稿
// 草稿带有病例 ID 时覆盖该病例，否则新建
// @Router /api/drafts/submit [post]
func (h *DraftHandler) Submit(c *gin.Context) {
	m, ok := h.open(c)
	if !ok {
		return
	}

	id, err := m.Submit(c.Request.Context())
	if err != nil {
		respondDraftError(c, err, "提交病例失败")
		return
	}

	caseID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		response.InternalError(c, "提交病例失败", err)
		return
	}
	response.SuccessWithMessage(c, "病例提交成功", gin.H{"caseId": caseID})
}

// Reset 放弃当前草稿
// @Router /api/drafts [delete]
func (h *DraftHandler) Reset(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	rec, err := h.draftService.Reset(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "清空草稿失败")
		return
	}

	response.Success(c, gin.H{"draft": rec})
}

// respondDraftError 草稿错误映射，其余交给 respondError
func respondDraftError(c *gin.Context, err error, fallback string) {
	var ve *draft.ValidationError
	switch {
	case errors.As(err, &ve):
		msgs := ve.Messages()
		response.ValidationFailed(c, msgs[0], msgs)
	case errors.Is(err, draft.ErrUnknownSection):
		response.NotFound(c, err.Error())
	case errors.Is(err, draft.ErrInvalidField), errors.Is(err, draft.ErrInvalidStep):
		response.BadRequest(c, err.Error())
	default:
		respondError(c, err, fallback)
	}
}
