// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"medidesk-go/internal/model"
)

// ChatLogRepository 定义了聊天记录的持久化操作。记录只追加，不修改也不删除。
type ChatLogRepository interface {
	Create(ctx context.Context, chat *model.ChatLog) error
	// List 按创建时间倒序返回最多 limit 条记录。
	List(ctx context.Context, limit int) ([]model.ChatLog, error)
}

type chatLogRepository struct {
	db *gorm.DB
}

// NewChatLogRepository 创建一个基于 GORM 的 ChatLogRepository 实例。
func NewChatLogRepository(db *gorm.DB) ChatLogRepository {
	return &chatLogRepository{db: db}
}

// Create 写入一条聊天记录，ID 与创建时间由仓储层分配。
func (r *chatLogRepository) Create(ctx context.Context, chat *model.ChatLog) error {
	prepareChatLog(chat)
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *chatLogRepository) List(ctx context.Context, limit int) ([]model.ChatLog, error) {
	var chats []model.ChatLog
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&chats).Error
	return chats, err
}

func prepareChatLog(chat *model.ChatLog) {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}
}
