package queue

import (
	"fmt"
	"time"

	"jarvis/internal/models"

	"gorm.io/datatypes"
)

// Pure state-machine transitions over a Task row. The repository loads a
// row, applies one of these, and writes it back inside the same
// transaction; keeping the logic here makes the lifecycle testable
// without a database.

// markClaimed moves a pending task to claimed for the given worker.
func markClaimed(t *models.Task, workerID string, now time.Time) error {
	if t.Status != models.TaskPending {
		return fmt.Errorf("queue: cannot claim task %s in status %s", t.ID, t.Status)
	}
	t.Status = models.TaskClaimed
	t.ClaimedBy = &workerID
	t.ClaimedAt = &now
	return nil
}

// markStarted moves a claimed task to running. The claim must belong to
// the starting worker.
func markStarted(t *models.Task, workerID string, now time.Time) error {
	if t.Status != models.TaskClaimed {
		return fmt.Errorf("queue: cannot start task %s in status %s", t.ID, t.Status)
	}
	if t.ClaimedBy == nil || *t.ClaimedBy != workerID {
		return fmt.Errorf("queue: task %s is claimed by another worker", t.ID)
	}
	t.Status = models.TaskRunning
	t.StartedAt = &now
	return nil
}

// markCompleted finishes a running task with its result.
func markCompleted(t *models.Task, result datatypes.JSON, now time.Time) error {
	if t.Status != models.TaskRunning {
		return fmt.Errorf("queue: cannot complete task %s in status %s", t.ID, t.Status)
	}
	t.Status = models.TaskCompleted
	t.Result = result
	t.CompletedAt = &now
	t.Error = ""
	return nil
}

// applyFailure records a failed attempt. The task goes back to pending
// while retries remain, otherwise it fails permanently. Returns true when
// the task was requeued.
func applyFailure(t *models.Task, errMsg string, now time.Time) (retried bool, err error) {
	if t.Status != models.TaskRunning && t.Status != models.TaskClaimed {
		return false, fmt.Errorf("queue: cannot fail task %s in status %s", t.ID, t.Status)
	}
	t.RetryCount++
	t.Error = errMsg
	if t.RetryCount <= t.MaxRetries {
		t.Status = models.TaskPending
		t.ClaimedBy = nil
		t.ClaimedAt = nil
		t.StartedAt = nil
		return true, nil
	}
	t.Status = models.TaskFailed
	t.CompletedAt = &now
	return false, nil
}

// markCancelled cancels a task that has not started running yet.
func markCancelled(t *models.Task, now time.Time) error {
	if t.Status != models.TaskPending && t.Status != models.TaskClaimed {
		return fmt.Errorf("queue: cannot cancel task %s in status %s", t.ID, t.Status)
	}
	t.Status = models.TaskCancelled
	t.CompletedAt = &now
	return nil
}

// resetStale returns a task whose worker died back to pending. The
// wasted attempt counts against the retry budget so a poison task cannot
// cycle forever through crashing workers.
func resetStale(t *models.Task, now time.Time) (requeued bool, err error) {
	if t.Status != models.TaskClaimed && t.Status != models.TaskRunning {
		return false, fmt.Errorf("queue: task %s in status %s is not stale-eligible", t.ID, t.Status)
	}
	t.RetryCount++
	t.Error = "reclaimed from stale worker"
	t.ClaimedBy = nil
	t.ClaimedAt = nil
	t.StartedAt = nil
	if t.RetryCount <= t.MaxRetries {
		t.Status = models.TaskPending
		return true, nil
	}
	t.Status = models.TaskFailed
	t.CompletedAt = &now
	return false, nil
}
