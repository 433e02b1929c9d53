package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// ErrTaskNotFound is returned when an operation names a task that does
// not exist.
var ErrTaskNotFound = errors.New("queue: task not found")

// Repository is the durable task queue over MySQL. Claiming uses
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never hand the
// same task to two executors (MySQL 8+).
type Repository struct {
	db     *gorm.DB
	events *Publisher
	log    *logger.Logger
}

// NewRepository creates the queue repository. events may be nil when
// lifecycle publishing is disabled.
func NewRepository(db *gorm.DB, events *Publisher, log *logger.Logger) *Repository {
	return &Repository{db: db, events: events, log: log}
}

// Enqueue inserts a new pending task. A nil scheduledAt means the task is
// runnable immediately; priority 0 falls back to the default 5.
func (r *Repository) Enqueue(ctx context.Context, userID, taskType string, payload interface{}, scheduledAt *time.Time, priority, maxRetries int) (*models.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal payload: %w", err)
	}
	if priority <= 0 {
		priority = 5
	}
	if maxRetries < 0 {
		maxRetries = 3
	}

	task := &models.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		TaskType:    taskType,
		Payload:     datatypes.JSON(body),
		ScheduledAt: scheduledAt,
		Priority:    priority,
		Status:      models.TaskPending,
		MaxRetries:  maxRetries,
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("queue: enqueue: %w", err)
	}
	r.publish(ctx, task, "")
	return task, nil
}

// ClaimNext atomically claims the highest-priority runnable task for the
// given worker. Returns (nil, nil) when the queue is empty.
func (r *Repository) ClaimNext(ctx context.Context, workerID string) (*models.Task, error) {
	var claimed *models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.TaskPending).
			Where("scheduled_at IS NULL OR scheduled_at <= ?", time.Now()).
			Order("priority ASC, scheduled_at ASC, created_at ASC").
			First(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("queue: select for claim: %w", err)
		}

		if err := markClaimed(&task, workerID, time.Now()); err != nil {
			return err
		}
		if err := tx.Save(&task).Error; err != nil {
			return fmt.Errorf("queue: persist claim: %w", err)
		}
		claimed = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed != nil {
		r.publish(ctx, claimed, workerID)
	}
	return claimed, nil
}

// StartTask transitions a claimed task to running.
func (r *Repository) StartTask(ctx context.Context, taskID, workerID string) error {
	return r.transition(ctx, taskID, workerID, func(t *models.Task) error {
		return markStarted(t, workerID, time.Now())
	})
}

// CompleteTask finishes a running task with its result payload.
func (r *Repository) CompleteTask(ctx context.Context, taskID string, result interface{}) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("queue: marshal result: %w", err)
	}
	return r.transition(ctx, taskID, "", func(t *models.Task) error {
		return markCompleted(t, datatypes.JSON(body), time.Now())
	})
}

// FailTask records a failed attempt: the task returns to pending while
// retries remain, otherwise it fails permanently.
func (r *Repository) FailTask(ctx context.Context, taskID, errMsg string) error {
	return r.transition(ctx, taskID, "", func(t *models.Task) error {
		_, err := applyFailure(t, errMsg, time.Now())
		return err
	})
}

// CancelTask cancels a task that has not started running.
func (r *Repository) CancelTask(ctx context.Context, taskID string) error {
	return r.transition(ctx, taskID, "", func(t *models.Task) error {
		return markCancelled(t, time.Now())
	})
}

// GetTask loads a task by ID.
func (r *Repository) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: load task: %w", err)
	}
	return &task, nil
}

// ListTasks returns the user's most recent tasks, optionally filtered by
// status.
func (r *Repository) ListTasks(ctx context.Context, userID string, status models.TaskStatus, limit int) ([]models.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tasks []models.Task
	if err := q.Order("created_at DESC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("queue: list tasks: %w", err)
	}
	return tasks, nil
}

// CleanupStaleTasks requeues claimed or running tasks whose last update is
// older than timeout: their worker presumably died. Returns how many tasks
// were touched.
func (r *Repository) CleanupStaleTasks(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-timeout)
	touched := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []models.Task
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status IN ?", []models.TaskStatus{models.TaskClaimed, models.TaskRunning}).
			Where("updated_at < ?", cutoff).
			Find(&stale).Error
		if err != nil {
			return fmt.Errorf("queue: select stale: %w", err)
		}

		for i := range stale {
			task := &stale[i]
			requeued, err := resetStale(task, time.Now())
			if err != nil {
				return err
			}
			if err := tx.Save(task).Error; err != nil {
				return fmt.Errorf("queue: persist stale reset: %w", err)
			}
			touched++
			if requeued {
				r.log.WithField("task_id", task.ID).Warn("requeued stale task")
			} else {
				r.log.WithField("task_id", task.ID).Warn("stale task exhausted retries")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return touched, nil
}

// transition loads the row under a lock, applies one state-machine step,
// and writes it back.
func (r *Repository) transition(ctx context.Context, taskID, workerID string, apply func(*models.Task) error) error {
	var updated *models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&task, "id = ?", taskID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		if err != nil {
			return fmt.Errorf("queue: load task: %w", err)
		}

		if err := apply(&task); err != nil {
			return err
		}
		if err := tx.Save(&task).Error; err != nil {
			return fmt.Errorf("queue: persist transition: %w", err)
		}
		updated = &task
		return nil
	})
	if err != nil {
		return err
	}
	r.publish(ctx, updated, workerID)
	return nil
}

// publish emits a lifecycle event, best effort.
func (r *Repository) publish(ctx context.Context, task *models.Task, workerID string) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishLifecycle(ctx, task, workerID); err != nil {
		r.log.WithErr(err).Warn("task event publish failed")
	}
}
