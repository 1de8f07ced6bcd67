package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"casebook-server/internal/model"
)

// ChatRepository 对话会话与消息的数据访问层
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建 ChatRepository 实例
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// GetSession 获取用户的会话
// 参数:
//   - ctx: 上下文
//   - id: 会话ID
//   - userID: 用户ID
//
// 返回:
//   - *model.ChatSession: 会话对象，不存在或不属于该用户时返回 nil
//   - error: 数据库错误
func (r *ChatRepository) GetSession(ctx context.Context, id, userID int64) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ListSessions 获取用户最近活跃的会话
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - limit: 返回数量上限
//
// 返回:
//   - []model.ChatSession: 按最近更新时间倒序
//   - error: 数据库错误
func (r *ChatRepository) ListSessions(ctx context.Context, userID int64, limit int) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// ListMessages 获取会话的全部消息，按时间正序
func (r *ChatRepository) ListMessages(ctx context.Context, sessionID int64) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// RecentMessages 获取会话最近的 n 条消息，按时间正序
func (r *ChatRepository) RecentMessages(ctx context.Context, sessionID int64, n int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(n).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Exchange 一轮问答
type Exchange struct {
	SessionID int64  // 为 0 时新建会话
	Title     string // 新建会话时使用的标题
	Question  string // 用户消息
	Answer    string // 模型回复
}

// SaveExchange 在同一个事务中保存一轮问答
// 新会话会先创建；已有会话会校验归属并刷新 updated_at
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - ex: 问答内容
//
// 返回:
//   - int64: 会话ID
//   - error: 会话不属于该用户时返回 gorm.ErrRecordNotFound
func (r *ChatRepository) SaveExchange(ctx context.Context, userID int64, ex Exchange) (int64, error) {
	sessionID := ex.SessionID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sessionID == 0 {
			session := model.ChatSession{UserID: userID, Title: ex.Title}
			if err := tx.Create(&session).Error; err != nil {
				return err
			}
			sessionID = session.ID
		} else {
			var session model.ChatSession
			if err := tx.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
				return err
			}
			if err := tx.Model(&session).Update("updated_at", time.Now()).Error; err != nil {
				return err
			}
		}

		messages := []model.ChatMessage{
			{ChatSessionID: sessionID, MessageType: model.MessageTypeUser, Content: ex.Question},
			{ChatSessionID: sessionID, MessageType: model.MessageTypeAssistant, Content: ex.Answer},
		}
		return tx.Create(&messages).Error
	})
	if err != nil {
		return 0, err
	}
	return sessionID, nil
}

// DeleteSession 在事务中删除会话及其全部消息
// 参数:
//   - ctx: 上下文
//   - id: 会话ID
//   - userID: 用户ID
//
// 返回:
//   - bool: 会话不存在或不属于该用户时返回 false，不做任何删除
//   - error: 数据库错误
func (r *ChatRepository) DeleteSession(ctx context.Context, id, userID int64) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_session_id = ?", id).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.ChatSession{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 回滚上面删除的消息
			return gorm.ErrRecordNotFound
		}
		deleted = true
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return deleted, err
}
