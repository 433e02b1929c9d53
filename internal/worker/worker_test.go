package worker

import (
	"testing"
	"time"

	"jarvis/internal/config"
	"jarvis/pkg/logger"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	w := NewWorker(nil, nil, config.WorkerConfig{
		PollIntervalActive:  0.5,
		PollIntervalIdle:    1.0,
		StaleTimeoutMinutes: 30,
	}, logger.New("test", ""))

	if got := w.backoff(1); got != 1100*time.Millisecond {
		t.Errorf("backoff(1) = %v, expected 1.1s", got)
	}
	if got := w.backoff(5); got != 1500*time.Millisecond {
		t.Errorf("backoff(5) = %v, expected 1.5s", got)
	}
	if got := w.backoff(1000); got != maxIdleSleep {
		t.Errorf("backoff(1000) = %v, expected the %v cap", got, maxIdleSleep)
	}
}

func TestWorkerIDGenerated(t *testing.T) {
	a := NewWorker(nil, nil, config.WorkerConfig{}, logger.New("test", ""))
	b := NewWorker(nil, nil, config.WorkerConfig{}, logger.New("test", ""))
	if a.id == "" || b.id == "" {
		t.Fatal("generated worker ID is empty")
	}
	if a.id == b.id {
		t.Errorf("two unconfigured workers share ID %q", a.id)
	}
}

func TestConfiguredIntervals(t *testing.T) {
	w := NewWorker(nil, nil, config.WorkerConfig{
		WorkerID:           "w1",
		PollIntervalActive: 0.25,
		PollIntervalIdle:   2,
	}, logger.New("test", ""))

	if w.activeSleep != 250*time.Millisecond {
		t.Errorf("activeSleep = %v", w.activeSleep)
	}
	if w.idleSleep != 2*time.Second {
		t.Errorf("idleSleep = %v", w.idleSleep)
	}
	if w.id != "w1" {
		t.Errorf("id = %q", w.id)
	}
}
