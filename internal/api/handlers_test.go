package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"jarvis/internal/models"
	"jarvis/internal/queue"
	"jarvis/pkg/logger"
)

type fakePipeline struct {
	lastUserID string
	lastInput  string
	err        error
}

func (f *fakePipeline) ProcessMessage(_ context.Context, userID, input string, _ []models.ChatMessage) (*models.State, error) {
	f.lastUserID = userID
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	state := models.NewState(userID, input, nil)
	state.Intent = models.IntentChitchat
	state.FinalResponse = "ciao!"
	return state, nil
}

type fakeQueue struct {
	tasks     map[string]*models.Task
	cancelled []string
	cancelErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{tasks: make(map[string]*models.Task)}
}

func (f *fakeQueue) Enqueue(_ context.Context, userID, taskType string, _ interface{}, scheduledAt *time.Time, priority, maxRetries int) (*models.Task, error) {
	task := &models.Task{ID: "task-1", UserID: userID, TaskType: taskType, Status: models.TaskPending}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeQueue) GetTask(_ context.Context, taskID string) (*models.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, queue.ErrTaskNotFound
	}
	return task, nil
}

func (f *fakeQueue) ListTasks(_ context.Context, userID string, _ models.TaskStatus, _ int) ([]models.Task, error) {
	var out []models.Task
	for _, task := range f.tasks {
		if task.UserID == userID {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (f *fakeQueue) CancelTask(_ context.Context, taskID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, taskID)
	return nil
}

func newTestServer(pipeline *fakePipeline, q *fakeQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handlers := NewAPI(pipeline, q, logger.New("test", ""))
	RegisterRoutes(engine, handlers, nil, "default")
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestChatHandler(t *testing.T) {
	pipeline := &fakePipeline{}
	engine := newTestServer(pipeline, newFakeQueue())

	w := doJSON(t, engine, http.MethodPost, "/api/v1/chat", `{"message": "ciao"}`, map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Response string `json:"response"`
		Intent   string `json:"intent"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Response != "ciao!" || resp.Intent != models.IntentChitchat {
		t.Errorf("response = %+v", resp)
	}
	if pipeline.lastUserID != "u1" || pipeline.lastInput != "ciao" {
		t.Errorf("pipeline saw user=%q input=%q", pipeline.lastUserID, pipeline.lastInput)
	}
}

func TestChatHandlerDefaultsUser(t *testing.T) {
	pipeline := &fakePipeline{}
	engine := newTestServer(pipeline, newFakeQueue())

	doJSON(t, engine, http.MethodPost, "/api/v1/chat", `{"message": "ciao"}`, nil)
	if pipeline.lastUserID != "default" {
		t.Errorf("pipeline saw user %q, expected the default identity", pipeline.lastUserID)
	}
}

func TestChatHandlerRejectsEmptyMessage(t *testing.T) {
	engine := newTestServer(&fakePipeline{}, newFakeQueue())

	w := doJSON(t, engine, http.MethodPost, "/api/v1/chat", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", w.Code)
	}
}

func TestChatHandlerPipelineFailure(t *testing.T) {
	engine := newTestServer(&fakePipeline{err: errors.New("llm down")}, newFakeQueue())

	w := doJSON(t, engine, http.MethodPost, "/api/v1/chat", `{"message": "ciao"}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, expected 500", w.Code)
	}
}

func TestSubmitAndGetTask(t *testing.T) {
	q := newFakeQueue()
	engine := newTestServer(&fakePipeline{}, q)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/tasks",
		`{"taskType": "reminder", "payload": {"message": "hi"}}`, map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodGet, "/api/v1/tasks/task-1", "", map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestGetTaskHidesOtherUsers(t *testing.T) {
	q := newFakeQueue()
	q.tasks["task-9"] = &models.Task{ID: "task-9", UserID: "owner"}
	engine := newTestServer(&fakePipeline{}, q)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/tasks/task-9", "", map[string]string{"X-User-ID": "intruder"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, expected 404 for a foreign task", w.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	engine := newTestServer(&fakePipeline{}, newFakeQueue())

	w := doJSON(t, engine, http.MethodGet, "/api/v1/tasks/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", w.Code)
	}
}

func TestCancelTask(t *testing.T) {
	q := newFakeQueue()
	q.tasks["task-2"] = &models.Task{ID: "task-2", UserID: "u1", Status: models.TaskPending}
	engine := newTestServer(&fakePipeline{}, q)

	w := doJSON(t, engine, http.MethodDelete, "/api/v1/tasks/task-2", "", map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(q.cancelled) != 1 || q.cancelled[0] != "task-2" {
		t.Errorf("cancelled = %v", q.cancelled)
	}
}

func TestCancelRunningTaskConflicts(t *testing.T) {
	q := newFakeQueue()
	q.tasks["task-3"] = &models.Task{ID: "task-3", UserID: "u1", Status: models.TaskRunning}
	q.cancelErr = errors.New("cannot cancel running task")
	engine := newTestServer(&fakePipeline{}, q)

	w := doJSON(t, engine, http.MethodDelete, "/api/v1/tasks/task-3", "", map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, expected 409", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	engine := newTestServer(&fakePipeline{}, newFakeQueue())

	w := doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
