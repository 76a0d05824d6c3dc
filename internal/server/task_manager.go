package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus defines the possible states of a task.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is an asynchronous traversal.
type Task struct {
	mu     sync.RWMutex
	id     string
	status TaskStatus
	result *TraverseResponse
	err    *ErrorResponse
	// finished is zero while the task is running.
	finished time.Time
}

// TaskView is the JSON snapshot of a task.
type TaskView struct {
	ID     string            `json:"id"`
	Status TaskStatus        `json:"status"`
	Result *TraverseResponse `json:"result,omitempty"`
	Error  *ErrorResponse    `json:"error,omitempty"`
}

// TaskManager tracks async traversals by id.
type TaskManager struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewTaskManager() *TaskManager {
	return &TaskManager{tasks: make(map[string]*Task)}
}

// NewTask registers a running task.
func (tm *TaskManager) NewTask() *Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	task := &Task{id: uuid.NewString(), status: TaskStatusRunning}
	tm.tasks[task.id] = task
	return task
}

// GetTask retrieves a task by id.
func (tm *TaskManager) GetTask(id string) (*Task, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	task, found := tm.tasks[id]
	return task, found
}

// Sweep drops tasks that finished more than ttl before now and returns how
// many were removed. Running tasks are kept.
func (tm *TaskManager) Sweep(now time.Time, ttl time.Duration) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	removed := 0
	for id, task := range tm.tasks {
		task.mu.RLock()
		done := task.finished
		task.mu.RUnlock()
		if !done.IsZero() && now.Sub(done) > ttl {
			delete(tm.tasks, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tasks.
func (tm *TaskManager) Len() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tasks)
}

// Complete stores the result.
func (t *Task) Complete(res *TraverseResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = TaskStatusCompleted
	t.result = res
	t.finished = time.Now()
}

// Fail records the terminal error.
func (t *Task) Fail(e *ErrorResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = TaskStatusFailed
	t.err = e
	t.finished = time.Now()
}

// View returns a consistent snapshot.
func (t *Task) View() TaskView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TaskView{ID: t.id, Status: t.status, Result: t.result, Error: t.err}
}
