package engine

import (
	"testing"
	"time"
)

const testWaitBudget = 2 * time.Second

// newTestProcessor builds a processor for one test and shuts it down on
// cleanup.
func newTestProcessor(t *testing.T, cfg TaskProcessorConfig) *TaskProcessor {
	t.Helper()
	p := NewTaskProcessor(cfg)
	t.Cleanup(p.Shutdown)
	return p
}

// waitFinished blocks until the task reaches a terminal state or the test
// budget runs out.
func waitFinished(t *testing.T, task *Task) {
	t.Helper()
	deadline := time.Now().Add(testWaitBudget)
	for !task.IsFinished() {
		if time.Now().After(deadline) {
			t.Fatalf("task %s did not finish, state = %v", task.ID(), task.GetState())
		}
		time.Sleep(time.Millisecond)
	}
}

// recvErr receives from ch or fails the test after the budget.
func recvErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(testWaitBudget):
		t.Fatal("timed out waiting for task result")
		return nil
	}
}
