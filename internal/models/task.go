package models

import (
	"time"

	"gorm.io/datatypes"
)

// TaskStatus 是后台任务的生命周期状态。
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"   // 等待被认领
	TaskClaimed   TaskStatus = "claimed"   // 已被某个 worker 认领
	TaskRunning   TaskStatus = "running"   // 处理器执行中
	TaskCompleted TaskStatus = "completed" // 成功结束
	TaskFailed    TaskStatus = "failed"    // 重试耗尽后永久失败
	TaskCancelled TaskStatus = "cancelled" // 被显式取消
)

// Task 是持久化任务队列中的一个工作单元。
//
// 状态机:
//
//	pending --claim--> claimed --start--> running --成功--> completed
//	running --失败且 retry_count<max--> pending (retry_count+1)
//	running --失败且 retry_count>=max--> failed
//	pending|claimed --cancel--> cancelled
//	claimed|running --僵死超时--> pending (认领字段清空, retry_count+1)
//
// 不变量: claimed/running 状态下 ClaimedBy/ClaimedAt 必须非空；
// ScheduledAt 为空表示立即可执行；Priority 数值越小优先级越高。
type Task struct {
	ID          string         `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      string         `gorm:"size:128;index" json:"userID"`
	TaskType    string         `gorm:"size:64" json:"taskType"`
	Payload     datatypes.JSON `json:"payload"`
	ScheduledAt *time.Time     `gorm:"index" json:"scheduledAt,omitempty"`
	Priority    int            `gorm:"default:5" json:"priority"` // 1 最高 .. 10 最低
	Status      TaskStatus     `gorm:"size:16;index;default:pending" json:"status"`
	ClaimedBy   *string        `gorm:"size:128" json:"claimedBy,omitempty"`
	ClaimedAt   *time.Time     `json:"claimedAt,omitempty"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Result      datatypes.JSON `json:"result,omitempty"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	RetryCount  int            `gorm:"default:0" json:"retryCount"`
	MaxRetries  int            `gorm:"default:3" json:"maxRetries"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"index" json:"updatedAt"`
}

// TableName 指定 GORM 表名。
func (Task) TableName() string {
	return "tasks"
}
