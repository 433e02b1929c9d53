package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// TaskStore is the slice of the queue the executor drives transitions on.
type TaskStore interface {
	StartTask(ctx context.Context, taskID, workerID string) error
	CompleteTask(ctx context.Context, taskID string, result interface{}) error
	FailTask(ctx context.Context, taskID, errMsg string) error
	Enqueue(ctx context.Context, userID, taskType string, payload interface{}, scheduledAt *time.Time, priority, maxRetries int) (*models.Task, error)
}

// Notifier pushes a message to the user, normally over Telegram.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Pipeline runs one message through the assistant, the same entry the
// chat API uses.
type Pipeline interface {
	ProcessMessage(ctx context.Context, userID, input string, history []models.ChatMessage) (*models.State, error)
}

// Handler executes one task type and returns its result payload.
type Handler func(ctx context.Context, task *models.Task) (interface{}, error)

// Executor dispatches claimed tasks to their typed handler and settles
// each task exactly once: one CompleteTask or one FailTask per attempt,
// panics included.
type Executor struct {
	store    TaskStore
	handlers map[string]Handler
	log      *logger.Logger
}

// NewExecutor builds the executor with the standard handler set.
// notifier and pipeline may be nil; handlers that need them fail their
// tasks with a configuration error instead of panicking.
func NewExecutor(store TaskStore, notifier Notifier, pipeline Pipeline, log *logger.Logger) *Executor {
	e := &Executor{store: store, log: log}
	e.handlers = map[string]Handler{
		"reminder":        e.handleReminder(notifier),
		"scheduled_check": e.handleScheduledCheck(pipeline, notifier),
		"long_running":    e.handleLongRunning(),
		"digest":          e.handleDigest(pipeline, notifier),
	}
	return e
}

// Execute runs one claimed task to a terminal attempt state.
func (e *Executor) Execute(ctx context.Context, task *models.Task, workerID string) {
	log := e.log.WithPayload(map[string]interface{}{
		"task_id":   task.ID,
		"task_type": task.TaskType,
	})

	if err := e.store.StartTask(ctx, task.ID, workerID); err != nil {
		log.WithErr(err).Error("could not start claimed task")
		return
	}

	handler, ok := e.handlers[task.TaskType]
	if !ok {
		e.settle(ctx, task, nil, fmt.Errorf("no handler for task type %q", task.TaskType))
		return
	}

	result, err := e.runSafely(ctx, handler, task)
	e.settle(ctx, task, result, err)
	if err != nil {
		log.WithErr(err).Warn("task attempt failed")
	} else {
		log.Info("task completed")
	}
}

// runSafely converts a handler panic into an error so the task still
// settles.
func (e *Executor) runSafely(ctx context.Context, handler Handler, task *models.Task) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, task)
}

func (e *Executor) settle(ctx context.Context, task *models.Task, result interface{}, err error) {
	if err == nil {
		if err := e.store.CompleteTask(ctx, task.ID, result); err != nil {
			e.log.WithErr(err).Error("could not record task completion")
		}
		return
	}
	if err := e.store.FailTask(ctx, task.ID, err.Error()); err != nil {
		e.log.WithErr(err).Error("could not record task failure")
	}
}

// --- handlers ---

type reminderPayload struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

func (e *Executor) handleReminder(notifier Notifier) Handler {
	return func(ctx context.Context, task *models.Task) (interface{}, error) {
		if notifier == nil {
			return nil, fmt.Errorf("notifier not configured")
		}
		var p reminderPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return nil, fmt.Errorf("bad reminder payload: %w", err)
		}
		if p.Message == "" {
			return nil, fmt.Errorf("reminder has no message")
		}
		if err := notifier.SendMessage(ctx, p.ChatID, "⏰ "+p.Message); err != nil {
			return nil, err
		}
		return map[string]interface{}{"notified": true}, nil
	}
}

type checkPayload struct {
	ChatID string `json:"chatId"`
	Query  string `json:"query"`
}

// handleScheduledCheck runs a saved query through the assistant and
// pushes the answer to the user.
func (e *Executor) handleScheduledCheck(pipeline Pipeline, notifier Notifier) Handler {
	return func(ctx context.Context, task *models.Task) (interface{}, error) {
		if pipeline == nil || notifier == nil {
			return nil, fmt.Errorf("pipeline or notifier not configured")
		}
		var p checkPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return nil, fmt.Errorf("bad check payload: %w", err)
		}
		state, err := pipeline.ProcessMessage(ctx, task.UserID, p.Query, nil)
		if err != nil {
			return nil, err
		}
		if err := notifier.SendMessage(ctx, p.ChatID, state.FinalResponse); err != nil {
			return nil, err
		}
		return map[string]interface{}{"response": state.FinalResponse}, nil
	}
}

type longRunningPayload struct {
	DurationSeconds int `json:"durationSeconds"`
}

// handleLongRunning is the queue's soak handler: it holds a slot for the
// requested duration, honoring cancellation.
func (e *Executor) handleLongRunning() Handler {
	return func(ctx context.Context, task *models.Task) (interface{}, error) {
		var p longRunningPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return nil, fmt.Errorf("bad long_running payload: %w", err)
		}
		duration := time.Duration(p.DurationSeconds) * time.Second
		if duration <= 0 || duration > 10*time.Minute {
			duration = time.Second
		}
		select {
		case <-time.After(duration):
			return map[string]interface{}{"sleptSeconds": duration.Seconds()}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type digestPayload struct {
	ChatID string `json:"chatId"`
}

const digestQuery = "Fammi un riepilogo della giornata: calendario, email recenti e task in scadenza."

// handleDigest produces the daily summary, pushes it, and re-enqueues
// itself for the next day. Rescheduling failure fails the attempt so the
// chain is never silently broken.
func (e *Executor) handleDigest(pipeline Pipeline, notifier Notifier) Handler {
	return func(ctx context.Context, task *models.Task) (interface{}, error) {
		if pipeline == nil || notifier == nil {
			return nil, fmt.Errorf("pipeline or notifier not configured")
		}
		var p digestPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return nil, fmt.Errorf("bad digest payload: %w", err)
		}
		state, err := pipeline.ProcessMessage(ctx, task.UserID, digestQuery, nil)
		if err != nil {
			return nil, err
		}
		if err := notifier.SendMessage(ctx, p.ChatID, state.FinalResponse); err != nil {
			return nil, err
		}

		next := time.Now().Add(24 * time.Hour)
		if _, err := e.store.Enqueue(ctx, task.UserID, "digest", p, &next, task.Priority, task.MaxRetries); err != nil {
			return nil, fmt.Errorf("digest sent but reschedule failed: %w", err)
		}
		return map[string]interface{}{"sent": true, "nextRun": next}, nil
	}
}
