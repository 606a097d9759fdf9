// Package sched provides cancellable scheduled tasks. Every periodic
// or delayed callback in the haunting core is owned by the component
// that started it and torn down through its handle; nothing relies on
// orphaned timers noticing on their own that the session ended.
package sched

import (
	"sync"
	"time"
)

// Task is a handle to one scheduled callback.
type Task struct {
	stop chan struct{}
	once sync.Once
}

// Stop cancels the task. Safe to call more than once; after Stop
// returns the callback will not fire again (an in-flight invocation
// may still be completing).
func (t *Task) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Every runs fn on a fixed period until the task is stopped.
func Every(interval time.Duration, fn func()) *Task {
	t := &Task{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return t
}

// After runs fn once after delay unless the task is stopped first.
func After(delay time.Duration, fn func()) *Task {
	t := &Task{stop: make(chan struct{})}
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-t.stop:
		case <-timer.C:
			fn()
		}
	}()
	return t
}

// Group owns a set of tasks with a shared teardown.
type Group struct {
	mu    sync.Mutex
	tasks []*Task
}

// Add registers a task with the group and returns it.
func (g *Group) Add(t *Task) *Task {
	g.mu.Lock()
	g.tasks = append(g.tasks, t)
	g.mu.Unlock()
	return t
}

// StopAll cancels every task the group owns.
func (g *Group) StopAll() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = nil
	g.mu.Unlock()
	for _, t := range tasks {
		t.Stop()
	}
}
