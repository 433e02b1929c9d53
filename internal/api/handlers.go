package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"jarvis/internal/models"
	"jarvis/internal/queue"
	"jarvis/pkg/logger"
)

// Pipeline is the slice of the orchestrator the chat handler needs.
type Pipeline interface {
	ProcessMessage(ctx context.Context, userID, input string, history []models.ChatMessage) (*models.State, error)
}

// TaskQueue is the slice of the queue repository the task handlers need.
type TaskQueue interface {
	Enqueue(ctx context.Context, userID, taskType string, payload interface{}, scheduledAt *time.Time, priority, maxRetries int) (*models.Task, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListTasks(ctx context.Context, userID string, status models.TaskStatus, limit int) ([]models.Task, error)
	CancelTask(ctx context.Context, taskID string) error
}

// API provides the HTTP handlers for chat and task queue endpoints.
type API struct {
	pipeline Pipeline
	queue    TaskQueue
	logger   *logger.Logger
}

// NewAPI creates the handler set.
func NewAPI(pipeline Pipeline, taskQueue TaskQueue, logger *logger.Logger) *API {
	return &API{pipeline: pipeline, queue: taskQueue, logger: logger}
}

// ChatHandler runs one user message through the assistant pipeline.
func (a *API) ChatHandler(c *gin.Context) {
	userID := c.GetString("userID")

	var payload struct {
		Message string               `json:"message" binding:"required"`
		History []models.ChatMessage `json:"history"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	state, err := a.pipeline.ProcessMessage(c.Request.Context(), userID, payload.Message, payload.History)
	if err != nil {
		a.logger.WithErr(err).Error("chat pipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response":   state.FinalResponse,
		"intent":     state.Intent,
		"confidence": state.IntentConfidence,
		"agents":     state.RequiredAgents,
	})
}

// SubmitTaskHandler enqueues a background task.
func (a *API) SubmitTaskHandler(c *gin.Context) {
	userID := c.GetString("userID")

	var payload struct {
		TaskType    string                 `json:"taskType" binding:"required"`
		Payload     map[string]interface{} `json:"payload"`
		ScheduledAt *time.Time             `json:"scheduledAt"`
		Priority    int                    `json:"priority"`
		MaxRetries  int                    `json:"maxRetries"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	task, err := a.queue.Enqueue(c.Request.Context(), userID, payload.TaskType, payload.Payload, payload.ScheduledAt, payload.Priority, payload.MaxRetries)
	if err != nil {
		a.logger.WithErr(err).Error("enqueue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue task"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "status": task.Status})
}

// GetTaskHandler returns one task, owner-checked.
func (a *API) GetTaskHandler(c *gin.Context) {
	userID := c.GetString("userID")

	task, err := a.queue.GetTask(c.Request.Context(), c.Param("id"))
	if errors.Is(err, queue.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve task"})
		return
	}
	if task.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// ListTasksHandler returns the user's recent tasks.
func (a *API) ListTasksHandler(c *gin.Context) {
	userID := c.GetString("userID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	status := models.TaskStatus(c.Query("status"))

	tasks, err := a.queue.ListTasks(c.Request.Context(), userID, status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// CancelTaskHandler cancels a task that has not started running.
func (a *API) CancelTaskHandler(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	task, err := a.queue.GetTask(c.Request.Context(), taskID)
	if errors.Is(err, queue.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve task"})
		return
	}
	if task.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	if err := a.queue.CancelTask(c.Request.Context(), taskID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "task can no longer be cancelled"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": models.TaskCancelled})
}
