package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// These tests exercise the SQL side of the queue: the SKIP LOCKED claim,
// its ordering, and the stale sweep. They need a disposable MySQL 8
// database and are skipped unless JARVIS_TEST_MYSQL_DSN is set, e.g.
//
//	JARVIS_TEST_MYSQL_DSN="jarvis:jarvis@tcp(localhost:3306)/jarvis_test?charset=utf8mb4&parseTime=True&loc=Local" go test ./internal/queue/
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("JARVIS_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("JARVIS_TEST_MYSQL_DSN not set")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	if err := db.AutoMigrate(&models.Task{}); err != nil {
		t.Fatalf("migrate tasks: %v", err)
	}
	if err := db.Exec("DELETE FROM tasks").Error; err != nil {
		t.Fatalf("clean tasks: %v", err)
	}
	return NewRepository(db, nil, logger.New("queue-test", ""))
}

func TestClaimOrderFollowsPriority(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	var ids [3]string
	for i, priority := range []int{5, 1, 5} {
		task, err := repo.Enqueue(ctx, "u1", "reminder", nil, nil, priority, 0)
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		ids[i] = task.ID
		time.Sleep(20 * time.Millisecond) // distinct created_at
	}

	// priority 1 first, then the two priority-5 tasks in enqueue order
	want := []string{ids[1], ids[0], ids[2]}
	for i, expected := range want {
		task, err := repo.ClaimNext(ctx, "w1")
		if err != nil {
			t.Fatalf("ClaimNext() #%d error = %v", i, err)
		}
		if task == nil {
			t.Fatalf("ClaimNext() #%d returned nothing", i)
		}
		if task.ID != expected {
			t.Errorf("claim #%d = %s, expected %s", i, task.ID, expected)
		}
		if task.Status != models.TaskClaimed || task.ClaimedBy == nil {
			t.Errorf("claim #%d status = %s, claimedBy = %v", i, task.Status, task.ClaimedBy)
		}
	}

	if task, err := repo.ClaimNext(ctx, "w1"); err != nil || task != nil {
		t.Errorf("drained queue returned task = %v, err = %v", task, err)
	}
}

func TestClaimNextIsExclusiveUnderConcurrency(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	const tasks = 4
	const workers = 8
	for i := 0; i < tasks; i++ {
		if _, err := repo.Enqueue(ctx, "u1", "reminder", nil, nil, 5, 0); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	claims := make(chan *models.Task, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			task, err := repo.ClaimNext(ctx, fmt.Sprintf("w%d", n))
			if err != nil {
				t.Errorf("ClaimNext() error = %v", err)
				return
			}
			claims <- task
		}(i)
	}
	wg.Wait()
	close(claims)

	seen := make(map[string]bool)
	empty := 0
	for task := range claims {
		if task == nil {
			empty++
			continue
		}
		if seen[task.ID] {
			t.Errorf("task %s claimed twice", task.ID)
		}
		seen[task.ID] = true
	}
	if len(seen) != tasks {
		t.Errorf("claimed %d distinct tasks, expected %d", len(seen), tasks)
	}
	if empty != workers-tasks {
		t.Errorf("%d callers got nothing, expected %d", empty, workers-tasks)
	}
}

func TestCleanupStaleTasksResetsAbandonedClaims(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	abandoned, err := repo.Enqueue(ctx, "u1", "reminder", nil, nil, 5, 3)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	live, err := repo.Enqueue(ctx, "u1", "reminder", nil, nil, 5, 3)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	for range [2]int{} {
		if _, err := repo.ClaimNext(ctx, "w-dead"); err != nil {
			t.Fatalf("ClaimNext() error = %v", err)
		}
	}

	// Age the first claim past the timeout; the sweep keys on updated_at.
	err = repo.db.Model(&models.Task{}).Where("id = ?", abandoned.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error
	if err != nil {
		t.Fatalf("age claim: %v", err)
	}

	touched, err := repo.CleanupStaleTasks(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("CleanupStaleTasks() error = %v", err)
	}
	if touched != 1 {
		t.Errorf("touched = %d, expected only the aged task", touched)
	}

	reset, err := repo.GetTask(ctx, abandoned.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if reset.Status != models.TaskPending || reset.ClaimedBy != nil || reset.RetryCount != 1 {
		t.Errorf("reset task: status = %s, claimedBy = %v, retryCount = %d",
			reset.Status, reset.ClaimedBy, reset.RetryCount)
	}

	untouched, err := repo.GetTask(ctx, live.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if untouched.Status != models.TaskClaimed {
		t.Errorf("recently claimed task status = %s, expected claimed", untouched.Status)
	}
}
