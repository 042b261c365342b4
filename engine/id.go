package engine

import "github.com/oklog/ulid/v2"

// TaskID identifies one scheduled task, e.g. in logs and metrics.
type TaskID string

func newTaskID() TaskID {
	return TaskID(ulid.Make().String())
}
