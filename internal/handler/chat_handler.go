package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"casebook-server/internal/service"
	"casebook-server/pkg/response"
)

// ChatHandler 医疗问答请求处理器
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// SendMessage 发送消息
// 模型不可用时仍返回 200，fallback 为 true
// @Summary 发送问答消息
// @Tags 问答
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.SendMessageRequest true "消息、会话ID和上下文"
// @Success 200 {object} map[string]interface{} "success, chatId, aiResponse, timestamp"
// @Router /api/chat/message [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	reply, err := h.chatService.SendMessage(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err, "发送消息失败")
		return
	}

	body := gin.H{
		"chatId":     reply.ChatID,
		"aiResponse": reply.Text,
		"timestamp":  reply.Timestamp.Format(time.RFC3339),
	}
	if reply.Degraded {
		body["fallback"] = true
	}
	response.Success(c, body)
}

// ListSessions 获取会话列表
// @Summary 获取最近的问答会话
// @Tags 问答
// @Security Bearer
// @Produce json
// @Router /api/chat/sessions [get]
func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	sessions, err := h.chatService.ListSessions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "获取聊天会话失败")
		return
	}

	response.Success(c, gin.H{"sessions": sessions})
}

// ListMessages 获取会话消息
// @Summary 获取会话中的全部消息
// @Tags 问答
// @Security Bearer
// @Produce json
// @Param id path int true "会话ID"
// @Router /api/chat/sessions/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id", service.ErrSessionNotFound)
	if !ok {
		return
	}

	messages, err := h.chatService.ListMessages(c.Request.Context(), userID, sessionID)
	if err != nil {
		respondError(c, err, "获取聊天消息失败")
		return
	}

	response.Success(c, gin.H{"messages": messages})
}

// DeleteSession 删除会话
// @Summary 删除会话及其消息
// @Tags 问答
// @Security Bearer
// @Param id path int true "会话ID"
// @Router /api/chat/sessions/{id} [delete]
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id", service.ErrSessionNotFound)
	if !ok {
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		respondError(c, err, "删除失败")
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}
