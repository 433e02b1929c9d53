package models

import (
	"time"

	"gorm.io/datatypes"
)

// ConversationTurn 是对话日志中的一条记录。只追加，按创建时间排序。
type ConversationTurn struct {
	ID        string         `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    string         `gorm:"size:128;index" json:"userID"`
	Role      string         `gorm:"size:16" json:"role"` // user | assistant | system
	Content   string         `gorm:"type:text" json:"content"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

// TableName 指定 GORM 表名。
func (ConversationTurn) TableName() string {
	return "conversation_turns"
}
