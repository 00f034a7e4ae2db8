// Package queue implements the workflow task queue on Redis: a stream of
// task messages read through a consumer group, a state hash per task and a
// pub/sub channel for revocations.
package queue

import (
	"encoding/json"
	"time"
)

// State is the backend state of a task.
type State string

const (
	StatePending  State = "PENDING"
	StateStarted  State = "STARTED"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
	StateRevoked  State = "REVOKED"
)

// Terminal reports whether no further transitions are accepted from s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure || s == StateRevoked
}

// Task is one queued unit of work.
type Task struct {
	ID         string
	Name       string
	Payload    json.RawMessage
	EnqueuedAt time.Time

	// MessageID is the stream entry ID, set on tasks returned by a Consumer.
	MessageID string
}

// TaskRecord is the stored state of a task.
type TaskRecord struct {
	ID        string
	State     State
	Progress  int
	Step      string
	Result    json.RawMessage
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
