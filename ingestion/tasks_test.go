package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/vectra/ai/mock"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(clock *time.Time) *taskRegistry {
	r := newTaskRegistry()
	r.now = func() time.Time { return *clock }
	return r
}

func TestTaskRegistry_EvictsExpiredTasks(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newTestRegistry(&clock)
	r.retention = time.Minute

	r.add("done")
	r.start("done")
	r.finish("done", &TaskResult{DocumentID: "doc_a"}, nil)
	r.add("running")
	r.start("running")

	clock = clock.Add(30 * time.Second)
	r.add("fresh")
	_, ok := r.get("done")
	assert.True(t, ok, "finished task evicted before retention elapsed")

	clock = clock.Add(time.Minute)
	r.add("later")

	_, ok = r.get("done")
	assert.False(t, ok)
	for _, id := range []string{"running", "fresh", "later"} {
		_, ok := r.get(id)
		assert.True(t, ok, "unfinished task %s evicted", id)
	}
}

func TestTaskRegistry_CapsFinishedTasks(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newTestRegistry(&clock)
	r.maxFinished = 2

	for i := range 5 {
		id := fmt.Sprintf("task-%d", i)
		r.add(id)
		r.finish(id, nil, errors.New("boom"))
		clock = clock.Add(time.Second)
	}

	assert.Len(t, r.tasks, 2)
	assert.Equal(t, []string{"task-3", "task-4"}, r.finished)
	status, ok := r.get("task-4")
	require.True(t, ok)
	assert.Equal(t, TaskFailure, status.State)
	assert.Equal(t, "boom", status.Error)
}

func TestTaskRegistry_FinishIsIdempotent(t *testing.T) {
	r := newTaskRegistry()
	r.add("a")
	r.finish("a", &TaskResult{DocumentID: "doc_a"}, nil)
	r.finish("a", nil, errors.New("late"))

	status, ok := r.get("a")
	require.True(t, ok)
	assert.Equal(t, TaskSuccess, status.State)
	assert.Equal(t, []string{"a"}, r.finished)
}

func TestPipeline_TaskRetention(t *testing.T) {
	t.Run("invalid options", func(t *testing.T) {
		vector, graph, backend, err := badger.NewMemoryStores()
		require.NoError(t, err)
		defer backend.Close()
		provider := mock.NewMockProvider()

		_, err = NewPipeline(vector, graph, provider, WithTaskRetention(0, 10))
		assert.Error(t, err)
		_, err = NewPipeline(vector, graph, provider, WithTaskRetention(time.Minute, 0))
		assert.Error(t, err)
	})

	t.Run("oldest finished tasks are dropped", func(t *testing.T) {
		f := setupPipeline(t, WithTaskRetention(time.Hour, 1))

		first, err := f.pipeline.Submit(context.Background(), core.Document{Name: "a.txt", Content: curieText})
		require.NoError(t, err)
		waitTask(t, f.pipeline, first)

		second, err := f.pipeline.Submit(context.Background(), core.Document{Name: "b.txt", Content: curieText})
		require.NoError(t, err)
		status := waitTask(t, f.pipeline, second)
		assert.Equal(t, TaskSuccess, status.State)
		assert.Equal(t, "b.txt", status.Result.FileName)

		_, err = f.pipeline.TaskStatus(first)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}
