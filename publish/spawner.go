package publish

import (
	"context"
	"log/slog"
)

// Handle tracks a spawned background task.
type Handle interface {
	// Done is closed when the task has finished.
	Done() <-chan struct{}
}

// Spawner runs fire-and-forget background tasks. Tests substitute a
// synchronous implementation.
type Spawner interface {
	Spawn(name string, fn func(ctx context.Context)) Handle
}

type taskHandle struct {
	done chan struct{}
}

func (h *taskHandle) Done() <-chan struct{} { return h.done }

// GoSpawner runs each task on its own goroutine with panic recovery.
type GoSpawner struct {
	logger *slog.Logger
}

func NewGoSpawner(logger *slog.Logger) *GoSpawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoSpawner{logger: logger}
}

func (s *GoSpawner) Spawn(name string, fn func(ctx context.Context)) Handle {
	h := &taskHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background_task_panic", "task", name, "panic", r)
			}
		}()
		fn(context.Background())
	}()
	return h
}

// SyncSpawner runs tasks inline before returning. Used in tests and
// anywhere deterministic completion matters.
type SyncSpawner struct{}

func (SyncSpawner) Spawn(name string, fn func(ctx context.Context)) Handle {
	h := &taskHandle{done: make(chan struct{})}
	fn(context.Background())
	close(h.done)
	return h
}
