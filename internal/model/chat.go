package model

import (
	"time"
)

// MessageType 消息类型常量
const (
	MessageTypeUser      = "user"      // 用户消息
	MessageTypeAssistant = "assistant" // 模型回复
)

// ChatSession 对话会话
// 对应数据库表 chat_sessions
// 标题取自首条用户消息，每次有新消息时刷新 UpdatedAt
type ChatSession struct {
	ID     int64  `gorm:"primaryKey" json:"id"`
	UserID int64  `gorm:"index;not null" json:"user_id"`
	Title  string `gorm:"size:100;not null" json:"title"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`

	// Messages 会话中的消息（一对多），删除会话时需要先删除消息
	Messages []ChatMessage `gorm:"foreignKey:ChatSessionID" json:"messages,omitempty"`
}

// TableName 指定表名
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 对话消息
// 对应数据库表 chat_messages
type ChatMessage struct {
	ID            int64 `gorm:"primaryKey" json:"id"`
	ChatSessionID int64 `gorm:"index;not null" json:"chat_session_id"`

	// MessageType user 或 assistant
	MessageType string `gorm:"size:20;not null" json:"message_type"`

	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}
