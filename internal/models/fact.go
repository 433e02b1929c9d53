package models

import "time"

// FactCategory 是长期记忆事实的类别。
type FactCategory string

const (
	CategoryPreference FactCategory = "preference" // 用户偏好
	CategoryFact       FactCategory = "fact"       // 客观事实
	CategoryEpisode    FactCategory = "episode"    // 经历片段
	CategoryTask       FactCategory = "task"       // 待办事项
)

// MemoryFact 是后台提取器在每轮对话后沉淀的一条长期记忆。
// 元数据存放在 MySQL，嵌入向量存放在 Milvus，二者通过 ID 关联。
// 事实创建后不再原地更新，只在被检索时刷新 LastAccessedAt。
type MemoryFact struct {
	ID              string       `gorm:"type:char(36);primaryKey" json:"id"`
	UserID          string       `gorm:"size:128;index" json:"userID"`
	Fact            string       `gorm:"type:text" json:"fact"`
	Category        FactCategory `gorm:"size:16" json:"category"`
	Importance      float64      `json:"importance"` // [0,1]
	SourceMessageID string       `gorm:"type:char(36)" json:"sourceMessageID,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	LastAccessedAt  time.Time    `json:"lastAccessedAt"`
}

// TableName 指定 GORM 表名。
func (MemoryFact) TableName() string {
	return "memory_facts"
}
