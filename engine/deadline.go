package engine

import "time"

// =============================================================================
// Deadline: Immutable time point bounding a wait
// =============================================================================

type deadlineKind int8

const (
	deadlineUnreachable deadlineKind = iota
	deadlinePassed
	deadlineAt
)

// Deadline is an immutable point in time used to bound suspension calls.
// The zero value is an unreachable deadline ("wait forever").
type Deadline struct {
	kind deadlineKind
	when time.Time
}

// UnreachableDeadline returns a deadline that never expires.
func UnreachableDeadline() Deadline {
	return Deadline{kind: deadlineUnreachable}
}

// PassedDeadline returns a deadline that has already expired.
func PassedDeadline() Deadline {
	return Deadline{kind: deadlinePassed}
}

// DeadlineFromDuration returns a deadline d from now.
// A zero or negative duration yields an already-expired deadline.
func DeadlineFromDuration(d time.Duration) Deadline {
	if d <= 0 {
		return PassedDeadline()
	}
	return Deadline{kind: deadlineAt, when: time.Now().Add(d)}
}

// DeadlineFromTimePoint returns a deadline at the given time point.
func DeadlineFromTimePoint(t time.Time) Deadline {
	return Deadline{kind: deadlineAt, when: t}
}

// IsReachable reports whether the deadline can ever expire.
func (d Deadline) IsReachable() bool {
	return d.kind != deadlineUnreachable
}

// IsExpired reports whether the deadline has expired as of now.
func (d Deadline) IsExpired(now time.Time) bool {
	switch d.kind {
	case deadlineUnreachable:
		return false
	case deadlinePassed:
		return true
	default:
		return !d.when.After(now)
	}
}

// TimeLeft returns the remaining duration as of now.
// Zero for an expired deadline. Must not be called on an unreachable one.
func (d Deadline) TimeLeft(now time.Time) time.Duration {
	switch d.kind {
	case deadlineUnreachable:
		panic("engine: TimeLeft called on unreachable deadline")
	case deadlinePassed:
		return 0
	default:
		left := d.when.Sub(now)
		if left < 0 {
			return 0
		}
		return left
	}
}
