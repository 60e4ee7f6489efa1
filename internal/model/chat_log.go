// Package model 包含了应用的数据模型定义。
package model

import "time"

// ChatLog 代表一次完成的问答交互，对应 'chats' 表/集合。
// 只在回合成功完成时写入一次，之后不会被修改或删除。
type ChatLog struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id" bson:"_id"`
	VisitorText   string    `gorm:"type:text;not null" json:"visitorText" bson:"visitorText"`
	AssistantText string    `gorm:"type:text;not null" json:"assistantText" bson:"assistantText"`
	HospitalID    string    `gorm:"type:varchar(100);index;not null" json:"hospitalId" bson:"hospitalId"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt" bson:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatLog) TableName() string {
	return "chats"
}

// ChatLogDocument 是写入 Elasticsearch 的聊天记录文档。
type ChatLogDocument struct {
	ChatID        string    `json:"chat_id"`
	VisitorText   string    `json:"visitor_text"`
	AssistantText string    `json:"assistant_text"`
	HospitalID    string    `json:"hospital_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewChatLogDocument 将持久化后的 ChatLog 转换为索引文档。
func NewChatLogDocument(c ChatLog) ChatLogDocument {
	return ChatLogDocument{
		ChatID:        c.ID,
		VisitorText:   c.VisitorText,
		AssistantText: c.AssistantText,
		HospitalID:    c.HospitalID,
		CreatedAt:     c.CreatedAt,
	}
}

// ChatLog 将索引文档还原为 ChatLog。
func (d ChatLogDocument) ChatLog() ChatLog {
	return ChatLog{
		ID:            d.ChatID,
		VisitorText:   d.VisitorText,
		AssistantText: d.AssistantText,
		HospitalID:    d.HospitalID,
		CreatedAt:     d.CreatedAt,
	}
}
