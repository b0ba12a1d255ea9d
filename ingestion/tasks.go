package ingestion

import (
	"context"
	"sync"
	"time"
)

// TaskState is the lifecycle state of an ingestion task.
type TaskState string

const (
	TaskPending TaskState = "PENDING"
	TaskStarted TaskState = "STARTED"
	TaskSuccess TaskState = "SUCCESS"
	TaskFailure TaskState = "FAILURE"
)

// Done reports whether the state is final.
func (s TaskState) Done() bool {
	return s == TaskSuccess || s == TaskFailure
}

// TaskResult summarises a successfully ingested document.
type TaskResult struct {
	DocumentID         string `json:"document_id"`
	FileName           string `json:"file_name"`
	TotalChunks        int    `json:"total_chunks"`
	EntitiesCount      int    `json:"entities_count"`
	RelationshipsCount int    `json:"relationships_count"`
}

// TaskStatus is a point-in-time snapshot of a task.
type TaskStatus struct {
	TaskID      string      `json:"task_id"`
	State       TaskState   `json:"status"`
	Result      *TaskResult `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
	FinishedAt  time.Time   `json:"finished_at,omitzero"`
}

// Finished tasks are kept for polling until they expire or the registry
// holds more than the retention limit.
const (
	DefaultTaskRetention    = time.Hour
	DefaultMaxFinishedTasks = 1000
)

type task struct {
	status TaskStatus
	done   chan struct{}
}

// taskRegistry tracks task status in memory. Finished tasks are evicted
// oldest first.
type taskRegistry struct {
	mu          sync.RWMutex
	tasks       map[string]*task
	finished    []string
	retention   time.Duration
	maxFinished int
	now         func() time.Time
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{
		tasks:       make(map[string]*task),
		retention:   DefaultTaskRetention,
		maxFinished: DefaultMaxFinishedTasks,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (r *taskRegistry) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	r.tasks[id] = &task{
		status: TaskStatus{TaskID: id, State: TaskPending, SubmittedAt: r.now()},
		done:   make(chan struct{}),
	}
}

func (r *taskRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

func (r *taskRegistry) start(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.status.State = TaskStarted
	}
}

func (r *taskRegistry) finish(id string, result *TaskResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.status.State.Done() {
		return
	}
	t.status.FinishedAt = r.now()
	if err != nil {
		t.status.State = TaskFailure
		t.status.Error = err.Error()
	} else {
		t.status.State = TaskSuccess
		t.status.Result = result
	}
	close(t.done)
	r.finished = append(r.finished, id)
	r.prune()
}

// prune drops expired finished tasks and trims the rest to maxFinished.
// Callers hold r.mu.
func (r *taskRegistry) prune() {
	cutoff := r.now().Add(-r.retention)
	n := 0
	for n < len(r.finished) {
		t, ok := r.tasks[r.finished[n]]
		if ok && len(r.finished)-n <= r.maxFinished && t.status.FinishedAt.After(cutoff) {
			break
		}
		delete(r.tasks, r.finished[n])
		n++
	}
	if n > 0 {
		r.finished = append(r.finished[:0], r.finished[n:]...)
	}
}

func (r *taskRegistry) get(id string) (TaskStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return TaskStatus{}, false
	}
	return t.status, true
}

// wait blocks until the task finishes. The final status is returned even
// if the task is evicted in the meantime.
func (r *taskRegistry) wait(ctx context.Context, id string) (TaskStatus, bool, error) {
	r.mu.RLock()
	t, ok := r.tasks[id]
	r.mu.RUnlock()
	if !ok {
		return TaskStatus{}, false, nil
	}
	select {
	case <-t.done:
		r.mu.RLock()
		defer r.mu.RUnlock()
		return t.status, true, nil
	case <-ctx.Done():
		return TaskStatus{}, true, ctx.Err()
	}
}
