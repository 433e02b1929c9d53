package orchestrator

import (
	"context"
	"sync"
	"time"

	"jarvis/pkg/logger"
)

// Spawner runs detached background jobs with a concurrency cap. Jobs get
// their own context so they survive the request that spawned them, but a
// hard timeout keeps a wedged job from leaking its slot forever.
type Spawner struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	timeout time.Duration
	log     *logger.Logger
}

// NewSpawner creates a spawner allowing at most limit concurrent jobs.
func NewSpawner(limit int, log *logger.Logger) *Spawner {
	if limit <= 0 {
		limit = 3
	}
	return &Spawner{
		sem:     make(chan struct{}, limit),
		timeout: 60 * time.Second,
		log:     log,
	}
}

// Spawn schedules fn on a background goroutine. Excess jobs wait for a
// slot instead of being dropped; the caller never blocks.
func (s *Spawner) Spawn(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("job", name).WithPayload(map[string]interface{}{"panic": r}).Error("background job panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.log.WithField("job", name).WithErr(err).Warn("background job failed")
		}
	}()
}

// Wait blocks until running jobs finish or the grace period elapses.
func (s *Spawner) Wait(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		s.log.Warn("background jobs still running at shutdown")
	}
}
