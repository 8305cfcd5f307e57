package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dana/mimic/internal/db"
)

// Handler executes one task and returns a result string, persisted
// verbatim on the task record.
type Handler interface {
	Execute(ctx context.Context, task *db.Task) (string, error)
}

type HandlerFunc func(ctx context.Context, task *db.Task) (string, error)

func (f HandlerFunc) Execute(ctx context.Context, task *db.Task) (string, error) {
	return f(ctx, task)
}

// Scheduler polls the task store and dispatches due tasks sequentially.
// A handler fault marks its task failed and never escapes the loop.
type Scheduler struct {
	store    *db.DB
	handlers map[string]Handler
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// New builds a scheduler. interval is the polling period, timeout bounds
// each handler invocation.
func New(store *db.DB, interval, timeout time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		store:    store,
		handlers: make(map[string]Handler),
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Register associates a task type with a handler. The last registration
// for a type wins.
func (s *Scheduler) Register(taskType string, h Handler) {
	s.handlers[taskType] = h
}

// Create stores a new task with its initial dispatch cursor computed
// from the recurrence rule.
func (s *Scheduler) Create(personaID, userID, taskType, payload, recurrence string) (*db.Task, error) {
	return s.store.InsertTask(personaID, userID, taskType, payload, recurrence, NextRun(recurrence, s.now()))
}

// Run polls until ctx is cancelled. An error enumerating or dispatching
// due tasks is logged and the loop continues on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler: polling every %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Printf("scheduler: cycle failed: %v", err)
			}
		}
	}
}

// RunOnce executes a single polling cycle: every due task, sequentially,
// in cursor order.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	due, err := s.store.DueTasks(db.FormatTime(s.now()))
	if err != nil {
		return fmt.Errorf("querying due tasks: %w", err)
	}
	for i := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.dispatch(ctx, &due[i])
	}
	return nil
}

// dispatch runs one task through its full lifecycle. The recurrence
// cursor advances on failure too, so a faulty recurring task retries on
// its schedule instead of every cycle.
func (s *Scheduler) dispatch(ctx context.Context, task *db.Task) {
	if err := s.store.MarkTaskRunning(task.ID); err != nil {
		log.Printf("scheduler: marking task %d running: %v", task.ID, err)
		return
	}

	result, err := s.execute(ctx, task)

	status := db.TaskCompleted
	if err != nil {
		status = db.TaskFailed
		result = err.Error()
		log.Printf("scheduler: task %d (%s) failed: %v", task.ID, task.Type, err)
	}

	var next string
	if Recurring(task.Recurrence) {
		next = NextRun(task.Recurrence, s.now())
	}
	if err := s.store.FinishTask(task.ID, status, result, next); err != nil {
		log.Printf("scheduler: finishing task %d: %v", task.ID, err)
	}
}

// execute invokes the handler under the per-task timeout. An unknown
// task type is a completed no-op.
func (s *Scheduler) execute(ctx context.Context, task *db.Task) (string, error) {
	h, ok := s.handlers[task.Type]
	if !ok {
		return fmt.Sprintf("Unknown task type: %s", task.Type), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := h.Execute(ctx, task)
		done <- outcome{r, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return "", fmt.Errorf("handler timed out after %s", s.timeout)
	}
}
