package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"jarvis/internal/models"
)

// MessageWriter is the slice of the Kafka writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// TaskEvent is one lifecycle change on the task event topic. Downstream
// consumers (audit, dashboards) key on the task ID.
type TaskEvent struct {
	TaskID    string            `json:"taskId"`
	UserID    string            `json:"userId"`
	TaskType  string            `json:"taskType"`
	Status    models.TaskStatus `json:"status"`
	WorkerID  string            `json:"workerId,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher writes task lifecycle events to Kafka. Publishing is best
// effort: queue operations never fail because the event bus is down.
type Publisher struct {
	writer MessageWriter
}

// NewPublisher creates a lifecycle publisher over the given writer.
func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// PublishLifecycle emits the task's current state.
func (p *Publisher) PublishLifecycle(ctx context.Context, task *models.Task, workerID string) error {
	event := TaskEvent{
		TaskID:    task.ID,
		UserID:    task.UserID,
		TaskType:  task.TaskType,
		Status:    task.Status,
		WorkerID:  workerID,
		Error:     task.Error,
		Timestamp: time.Now(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ID),
		Value: body,
	})
}
