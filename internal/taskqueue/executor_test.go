package taskqueue

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestExecuteTaskReturnsResult(t *testing.T) {
	e := New()
	defer e.Stop()

	got, err := ExecuteTask(e, func(context.Context) (int, error) {
		return 42, nil
	}, "answer", true, 0)
	if err != nil {
		t.Fatalf("ExecuteTask() error = %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestTasksRunInFIFOOrder(t *testing.T) {
	e := New()
	defer e.Stop()

	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		IssueTask(e, func(context.Context) (struct{}, error) {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
			return struct{}{}, nil
		}, fmt.Sprintf("task-%d", i), true, 0)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not complete in time")
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of FIFO order: %v", order)
		}
	}
}

func TestExecuteTaskPropagatesError(t *testing.T) {
	e := New()
	defer e.Stop()

	wantErr := fmt.Errorf("boom")
	_, err := ExecuteTask(e, func(context.Context) (int, error) {
		return 0, wantErr
	}, "failing", true, 0)
	if err != wantErr {
		t.Fatalf("got err %v, want %v", err, wantErr)
	}
}

func TestGetLastExecutedTaskReflectsCompletion(t *testing.T) {
	e := New()
	defer e.Stop()

	if e.GetLastExecutedTask() != nil {
		t.Fatal("expected nil before any task runs")
	}
	_, _ = ExecuteTask(e, func(context.Context) (int, error) { return 1, nil }, "first", true, 0)

	// ExecuteTask's Result() unblocks as soon as finish() runs, which is
	// slightly before the executor's own bookkeeping records
	// lastExecuted; poll briefly rather than asserting immediately.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if info := e.GetLastExecutedTask(); info != nil {
			if info.Name != "first" {
				t.Fatalf("got last executed task %q, want %q", info.Name, "first")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("GetLastExecutedTask never reflected the completed task")
}

func TestTimeoutDoesNotBlockQueueForever(t *testing.T) {
	e := New()
	defer e.Stop()

	block := make(chan struct{})
	defer close(block)

	IssueTask(e, func(ctx context.Context) (int, error) {
		<-block
		return 0, nil
	}, "slow", true, 20*time.Millisecond)

	done := make(chan struct{})
	IssueTask(e, func(context.Context) (int, error) {
		close(done)
		return 0, nil
	}, "fast", true, 0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second task never ran; timeout on first task did not release the queue")
	}
}
