package utils

import (
	"context"
	"log"
	"sync"
	"time"
)

type registeredTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// TaskRegistry runs at most one named background goroutine per key and can
// stop any of them cooperatively with a bounded wait.
type TaskRegistry struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	tasks  map[string]*registeredTask
}

func NewTaskRegistry() *TaskRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRegistry{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*registeredTask),
	}
}

// Start stops any task already registered under name, waiting up to stopTimeout,
// then launches fn. The task deregisters itself when fn returns.
func (r *TaskRegistry) Start(name string, stopTimeout time.Duration, fn func(ctx context.Context)) {
	r.Stop(name, stopTimeout)

	r.mu.Lock()
	if prev, exists := r.tasks[name]; exists {
		// lost a race with another Start; the newer task wins
		prev.cancel()
	}
	taskCtx, taskCancel := context.WithCancel(r.ctx)
	t := &registeredTask{cancel: taskCancel, done: make(chan struct{})}
	r.tasks[name] = t
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			if r.tasks[name] == t {
				delete(r.tasks, name)
			}
			r.mu.Unlock()
			taskCancel()
			close(t.done)
		}()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("❌ [TASKS] task %s panicked: %v", name, rec)
			}
		}()
		fn(taskCtx)
	}()
}

// Stop cancels the task registered under name and waits up to timeout for it to
// exit. It reports false only when the task outlived the timeout.
func (r *TaskRegistry) Stop(name string, timeout time.Duration) bool {
	r.mu.Lock()
	t, ok := r.tasks[name]
	if ok {
		delete(r.tasks, name)
	}
	r.mu.Unlock()
	if !ok {
		return true
	}

	t.cancel()
	select {
	case <-t.done:
		return true
	case <-time.After(timeout):
		log.Printf("⚠️  [TASKS] task %s did not stop within %s", name, timeout)
		return false
	}
}

// Running reports whether a task is registered under name.
func (r *TaskRegistry) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[name]
	return ok
}

func (r *TaskRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Shutdown cancels every task and waits for all of them up to timeout.
func (r *TaskRegistry) Shutdown(timeout time.Duration) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		log.Printf("⚠️  [TASKS] timeout waiting for background tasks after %s", timeout)
		return context.DeadlineExceeded
	}
}
