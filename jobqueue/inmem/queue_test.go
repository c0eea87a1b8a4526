package inmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/turbobackend/mcpbridge/jobqueue"
)

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	t.Parallel()

	queue := New()
	ctx := context.Background()

	message := jobqueue.Message{
		ProjectID: "project-1",
		UserID:    "user-1",
		RequestID: "req-1",
		ToolName:  "modifyProject",
		Params:    map[string]any{"modificationRequest": "add endpoint"},
		StreamID:  "stream-1",
	}
	if err := queue.Enqueue(ctx, "modify-code", message, "stream-1"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	job, err := queue.Dequeue(ctx, "modify-code")
	if err != nil {
		t.Fatalf("Dequeue() failed: %v", err)
	}
	if job.Message.RequestID != "req-1" || job.StreamID != "stream-1" {
		t.Fatalf("job mismatch: got=%+v", job)
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	t.Parallel()

	queue := NewWithCapacity(1)
	ctx := context.Background()

	if err := queue.Enqueue(ctx, "spin-up-project", jobqueue.Message{RequestID: "req-1"}, "s-1"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	err := queue.Enqueue(ctx, "spin-up-project", jobqueue.Message{RequestID: "req-2"}, "s-2")
	if !errors.Is(err, jobqueue.ErrQueueUnavailable) {
		t.Fatalf("error mismatch: got=%v want=%v", err, jobqueue.ErrQueueUnavailable)
	}
}

func TestDequeueHonorsContext(t *testing.T) {
	t.Parallel()

	queue := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := queue.Dequeue(ctx, "spin-up-project")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error mismatch: got=%v want=%v", err, context.DeadlineExceeded)
	}
}

func TestQueuesAreIndependent(t *testing.T) {
	t.Parallel()

	queue := New()
	ctx := context.Background()

	if err := queue.Enqueue(ctx, "spin-up-project", jobqueue.Message{RequestID: "req-a"}, "s-a"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := queue.Dequeue(waitCtx, "modify-code"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cross-queue delivery: got=%v", err)
	}

	job, err := queue.Dequeue(ctx, "spin-up-project")
	if err != nil {
		t.Fatalf("Dequeue() failed: %v", err)
	}
	if job.Message.RequestID != "req-a" {
		t.Fatalf("job mismatch: got=%+v", job)
	}
}
