package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"jarvis/internal/config"
	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// ClaimQueue is the slice of the queue the poll loop needs.
type ClaimQueue interface {
	ClaimNext(ctx context.Context, workerID string) (*models.Task, error)
	CleanupStaleTasks(ctx context.Context, timeout time.Duration) (int, error)
}

// Upper bound on the idle backoff; the loop never sleeps longer than
// this between polls.
const maxIdleSleep = 5 * time.Second

// How often the loop sweeps for tasks abandoned by dead workers.
const cleanupInterval = 5 * time.Minute

// Worker polls the durable queue and executes claimed tasks one at a
// time. The poll interval backs off while the queue stays empty and
// snaps back on the first claimed task.
type Worker struct {
	id           string
	queue        ClaimQueue
	executor     *Executor
	activeSleep  time.Duration
	idleSleep    time.Duration
	staleTimeout time.Duration
	log          *logger.Logger
}

// NewWorker builds a worker from config. A missing worker ID gets a
// generated one so two unconfigured workers never share claims.
func NewWorker(queue ClaimQueue, executor *Executor, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	id := cfg.WorkerID
	if id == "" {
		id = "worker-" + uuid.New().String()[:8]
	}
	return &Worker{
		id:           id,
		queue:        queue,
		executor:     executor,
		activeSleep:  secondsToDuration(cfg.PollIntervalActive, 500*time.Millisecond),
		idleSleep:    secondsToDuration(cfg.PollIntervalIdle, time.Second),
		staleTimeout: time.Duration(cfg.StaleTimeoutMinutes) * time.Minute,
		log:          log.WithField("worker_id", id),
	}
}

// Run polls until ctx is cancelled. It owns the stale-task sweep too, so
// a single worker deployment still self-heals.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started")
	defer w.log.Info("worker stopped")

	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	idleCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			w.sweepStale(ctx)
		default:
		}

		task, err := w.queue.ClaimNext(ctx, w.id)
		if err != nil {
			w.log.WithErr(err).Error("claim failed")
			if !w.sleep(ctx, w.idleSleep) {
				return
			}
			continue
		}

		if task == nil {
			idleCount++
			if !w.sleep(ctx, w.backoff(idleCount)) {
				return
			}
			continue
		}

		idleCount = 0
		w.executor.Execute(ctx, task, w.id)
		if !w.sleep(ctx, w.activeSleep) {
			return
		}
	}
}

// backoff grows the idle sleep 10% per consecutive empty poll, capped.
func (w *Worker) backoff(idleCount int) time.Duration {
	d := time.Duration(float64(w.idleSleep) * (1 + float64(idleCount)*0.1))
	if d > maxIdleSleep {
		return maxIdleSleep
	}
	return d
}

func (w *Worker) sweepStale(ctx context.Context) {
	if w.staleTimeout <= 0 {
		return
	}
	n, err := w.queue.CleanupStaleTasks(ctx, w.staleTimeout)
	if err != nil {
		w.log.WithErr(err).Error("stale sweep failed")
		return
	}
	if n > 0 {
		w.log.WithField("count", n).Warn("reclaimed stale tasks")
	}
}

// sleep waits for d or cancellation; false means shut down.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func secondsToDuration(seconds float64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}
