package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"casebook-server/internal/llm"
	"casebook-server/internal/model"
	"casebook-server/internal/repository"
	"casebook-server/pkg/util"
)

// SystemPrompt 医疗助手的系统提示词
const SystemPrompt = `您是专业的医疗AI助手。

**回答要求：**
- 回答简洁明了，控制在100字以内
- 直接给出医疗建议，不要冗长解释
- 使用简单易懂的语言
- 严重症状立即建议就医

**请直接回答，不要显示思考过程。**`

// FallbackReply 模型不可用时的降级回复
const FallbackReply = `抱歉，AI服务暂时不可用。请稍后重试。

如果您有紧急医疗问题，请立即联系：
- 急救电话：120
- 医院急诊科
- 您的主治医生

对于一般健康咨询，建议您：
1. 详细记录症状和时间
2. 预约专科医生
3. 准备相关检查报告`

const (
	// sessionListLimit 会话列表最多返回的数量
	sessionListLimit = 50
	// titleMaxRunes 会话标题取首条消息的前 20 个字符
	titleMaxRunes = 20
	// defaultContextLimit 默认携带的上下文条数
	defaultContextLimit = 10
)

// Completer 对话补全
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// ChatService 医疗问答服务
type ChatService struct {
	chatRepo     *repository.ChatRepository
	completer    Completer
	contextLimit int
	now          func() time.Time
}

// NewChatService 创建 ChatService 实例
// contextLimit <= 0 时使用默认值 10
func NewChatService(chatRepo *repository.ChatRepository, completer Completer, contextLimit int) *ChatService {
	if contextLimit <= 0 {
		contextLimit = defaultContextLimit
	}
	return &ChatService{
		chatRepo:     chatRepo,
		completer:    completer,
		contextLimit: contextLimit,
		now:          time.Now,
	}
}

// ContextMessage 客户端携带的历史消息
type ContextMessage struct {
	Type    string `json:"type"` // user / ai / assistant
	Content string `json:"content"`
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Message         string           `json:"message"`
	ChatID          *int64           `json:"chatId"`
	ContextMessages []ContextMessage `json:"contextMessages"`
}

// Reply 一次问答的结果
type Reply struct {
	ChatID    int64
	Text      string
	Degraded  bool // 模型调用失败，Text 为降级回复
	Timestamp time.Time
}

// SendMessage 发送一条消息并保存问答
// 模型调用失败时返回降级回复而不是错误
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - req: 消息内容、会话ID和上下文
//
// 返回:
//   - *Reply: 回复
//   - error: *ValidationError、ErrSessionNotFound 或数据库错误
func (s *ChatService) SendMessage(ctx context.Context, userID int64, req *SendMessageRequest) (*Reply, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, invalid("消息内容不能为空")
	}

	var sessionID int64
	if req.ChatID != nil && *req.ChatID != 0 {
		sessionID = *req.ChatID
		session, err := s.chatRepo.GetSession(ctx, sessionID, userID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
	}

	history, err := s.history(ctx, sessionID, req.ContextMessages)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	reply := &Reply{}
	raw, err := s.completer.Complete(ctx, messages)
	if err != nil {
		log.Printf("[WARN] AI服务调用失败，使用降级回复: %v", &UpstreamError{Service: "llm", Err: err})
		reply.Text = FallbackReply
		reply.Degraded = true
	} else {
		reply.Text = llm.ExtractAnswer(raw)
	}

	reply.ChatID, err = s.chatRepo.SaveExchange(ctx, userID, repository.Exchange{
		SessionID: sessionID,
		Title:     util.TruncateRunes(text, titleMaxRunes),
		Question:  text,
		Answer:    reply.Text,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	reply.Timestamp = s.now()
	return reply, nil
}

// history 组装上下文
// 客户端没有携带上下文时，从已有会话中读取最近的消息
func (s *ChatService) history(ctx context.Context, sessionID int64, provided []ContextMessage) ([]llm.Message, error) {
	if len(provided) > 0 {
		if len(provided) > s.contextLimit {
			provided = provided[len(provided)-s.contextLimit:]
		}
		out := make([]llm.Message, 0, len(provided))
		for _, m := range provided {
			if role, ok := contextRole(m.Type); ok {
				out = append(out, llm.Message{Role: role, Content: m.Content})
			}
		}
		return out, nil
	}

	if sessionID == 0 {
		return nil, nil
	}
	stored, err := s.chatRepo.RecentMessages(ctx, sessionID, s.contextLimit)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		if role, ok := contextRole(m.MessageType); ok {
			out = append(out, llm.Message{Role: role, Content: m.Content})
		}
	}
	return out, nil
}

// contextRole 把消息类型映射为模型角色，其他类型丢弃
func contextRole(messageType string) (string, bool) {
	switch messageType {
	case model.MessageTypeUser:
		return llm.RoleUser, true
	case model.MessageTypeAssistant, "ai":
		return llm.RoleAssistant, true
	default:
		return "", false
	}
}

// SessionView 会话列表项
type SessionView struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TimeDisplay string    `json:"timeDisplay"`
}

// ListSessions 获取最近的 50 个会话
func (s *ChatService) ListSessions(ctx context.Context, userID int64) ([]SessionView, error) {
	sessions, err := s.chatRepo.ListSessions(ctx, userID, sessionListLimit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:          session.ID,
			Title:       session.Title,
			CreatedAt:   session.CreatedAt,
			UpdatedAt:   session.UpdatedAt,
			TimeDisplay: util.FormatRelativeTime(session.UpdatedAt, now),
		})
	}
	return views, nil
}

// MessageView 会话中的一条消息
type MessageView struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	TimeDisplay string    `json:"timeDisplay"`
}

// ListMessages 获取会话的全部消息
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - sessionID: 会话ID
//
// 返回:
//   - []MessageView: 按时间正序
//   - error: 会话不存在或不属于该用户时返回 ErrSessionNotFound
func (s *ChatService) ListMessages(ctx context.Context, userID, sessionID int64) ([]MessageView, error) {
	session, err := s.chatRepo.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	messages, err := s.chatRepo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, MessageView{
			ID:          m.ID,
			Type:        m.MessageType,
			Content:     m.Content,
			Timestamp:   m.CreatedAt,
			TimeDisplay: util.FormatClock(m.CreatedAt),
		})
	}
	return views, nil
}

// DeleteSession 删除会话及其消息
func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID int64) error {
	deleted, err := s.chatRepo.DeleteSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}
