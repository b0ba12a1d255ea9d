package ingestion

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 3, 1)

	tracker.Start()
	assert.True(t, tracker.started, "should be started")

	tracker.Observe(TaskStatus{State: TaskSuccess})
	tracker.Observe(TaskStatus{State: TaskFailure})
	tracker.Observe(TaskStatus{State: TaskSuccess})

	assert.Greater(t, tracker.Elapsed(), time.Duration(0), "elapsed time should be positive")
	assert.Equal(t, 1, tracker.Failed())

	output := buf.String()
	assert.Contains(t, output, "3/3")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "1 failed")
}

func TestProgressTracker_IgnoresUnfinished(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 2, 1)

	tracker.Start()
	tracker.Observe(TaskStatus{State: TaskPending})
	tracker.Observe(TaskStatus{State: TaskStarted})

	assert.Equal(t, "", buf.String(), "unfinished tasks should not be counted")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 10)

	tracker.Start()
	tracker.Observe(TaskStatus{State: TaskSuccess})
	assert.Equal(t, "", buf.String(), "should not print under interval")

	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "1/4")
	assert.Contains(t, output, "documents/s")
	assert.Contains(t, output, "\n", "finish should print newline")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 10)

	tracker.Start()
	tracker.Observe(TaskStatus{State: TaskSuccess})
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0", "should not exceed total")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Observe(TaskStatus{State: TaskSuccess})
	tracker.Finish()

	assert.Equal(t, "", buf.String(), "should have no output when not started")
	assert.Equal(t, time.Duration(0), tracker.Elapsed())
}
