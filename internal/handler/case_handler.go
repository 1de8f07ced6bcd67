package handler

import (
	"github.com/gin-gonic/gin"

	"casebook-server/internal/service"
	"casebook-server/pkg/response"
)

// CaseHandler 病例请求处理器
type CaseHandler struct {
	caseService  *service.CaseService
	draftService *service.DraftService
}

// NewCaseHandler 创建 CaseHandler 实例
func NewCaseHandler(caseService *service.CaseService, draftService *service.DraftService) *CaseHandler {
	return &CaseHandler{
		caseService:  caseService,
		draftService: draftService,
	}
}

// CreateCase 创建病例
// 请求体原样保存，不经过结构体重新序列化
// @Summary 创建病例
// @Tags 病例
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body model.CasePayload true "病例数据"
// @Success 200 {object} map[string]interface{} "success, caseId, message"
// @Router /api/cases [post]
func (h *CaseHandler) CreateCase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	caseID, err := h.caseService.CreateCase(c.Request.Context(), userID, raw)
	if err != nil {
		respondError(c, err, "创建病例失败")
		return
	}

	response.SuccessWithMessage(c, "病例创建成功", gin.H{"caseId": caseID})
}

// ListCases 获取病例列表
// @Summary 获取当前用户的病例列表
// @Tags 病例
// @Security Bearer
// @Produce json
// @Success 200 {object} map[string]interface{} "success, cases"
// @Router /api/cases [get]
func (h *CaseHandler) ListCases(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	cases, err := h.caseService.ListCases(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "获取病例列表失败")
		return
	}

	response.Success(c, gin.H{"cases": cases})
}

// GetCase 获取病例详情
// @Summary 获取病例详情
// @Tags 病例
// @Security Bearer
// @Produce json
// @Param id path int true "病例ID"
// @Success 200 {object} map[string]interface{} "success, caseData"
// @Router /api/cases/{id} [get]
func (h *CaseHandler) GetCase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	caseID, ok := pathID(c, "id", service.ErrCaseNotFound)
	if !ok {
		return
	}

	view, err := h.caseService.GetCase(c.Request.Context(), userID, caseID)
	if err != nil {
		respondError(c, err, "获取病例详情失败")
		return
	}

	response.Success(c, gin.H{"caseData": view})
}

// DeleteCase 删除病例
// @Summary 删除病例
// @Tags 病例
// @Security Bearer
// @Param id path int true "病例ID"
// @Router /api/cases/{id} [delete]
func (h *CaseHandler) DeleteCase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	caseID, ok := pathID(c, "id", service.ErrCaseNotFound)
	if !ok {
		return
	}

	if err := h.caseService.DeleteCase(c.Request.Context(), userID, caseID); err != nil {
		respondError(c, err, "删除失败")
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// EditCase 把病例放回草稿，修改后通过草稿接口重新提交
// @Summary 编辑已提交的病例
// @Tags 病例
// @Security Bearer
// @Param id path int true "病例ID"
// @Router /api/cases/{id}/draft [post]
func (h *CaseHandler) EditCase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	caseID, ok := pathID(c, "id", service.ErrCaseNotFound)
	if !ok {
		return
	}

	rec, err := h.draftService.EditCase(c.Request.Context(), userID, caseID)
	if err != nil {
		respondError(c, err, "打开病例草稿失败")
		return
	}

	response.Success(c, gin.H{"draft": rec})
}
