package taskengine_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	taskengine "github.com/cooptask/go-task-engine"
	"github.com/cooptask/go-task-engine/engine"
)

// Example demonstrates the default processor with only one import.
func Example() {
	taskengine.Init(taskengine.TaskProcessorConfig{Workers: 1})
	defer taskengine.Shutdown()

	done := make(chan struct{})

	// A single worker runs normal tasks in submission order.
	t1 := taskengine.Post(func(ctx context.Context) error {
		fmt.Println("Task 1")
		return nil
	})
	defer t1.Close()

	t2 := taskengine.Post(func(ctx context.Context) error {
		fmt.Println("Task 2")
		close(done)
		return nil
	})
	defer t2.Close()

	<-done

	// Output:
	// Task 1
	// Task 2
}

// ExamplePost_cancellation demonstrates cooperative cancellation: the task
// observes the request at a suspension point and unwinds by returning the
// error it was handed.
func ExamplePost_cancellation() {
	taskengine.Init(taskengine.TaskProcessorConfig{Workers: 1})
	defer taskengine.Shutdown()

	started := make(chan struct{})
	unwound := make(chan struct{})

	task := taskengine.Post(func(ctx context.Context) error {
		close(started)
		for {
			if err := taskengine.SleepFor(ctx, time.Millisecond); err != nil {
				var ce *engine.CancelledError
				errors.As(err, &ce)
				fmt.Println("cancelled:", ce.Reason)
				close(unwound)
				return err
			}
		}
	})

	<-started
	task.RequestCancel()
	<-unwound
	task.Close()

	// Output:
	// cancelled: user request
}

// ExamplePostTaskWithResult demonstrates the typed result handoff between
// two tasks.
func ExamplePostTaskWithResult() {
	p := engine.NewTaskProcessor(engine.TaskProcessorConfig{Workers: 2})
	defer p.Shutdown()

	producer, future := engine.PostTaskWithResult(p, func(ctx context.Context) (int, error) {
		return 6 * 7, nil
	})
	defer producer.Close()

	done := make(chan struct{})
	consumer := p.PostTask(func(ctx context.Context) error {
		v, err := future.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Println("result:", v)
		close(done)
		return nil
	})
	defer consumer.Close()

	<-done

	// Output:
	// result: 42
}
