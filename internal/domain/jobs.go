package domain

import "time"

// JobKind names the mutation a scheduled job invokes when it fires.
type JobKind string

const (
	JobActivateTest JobKind = "test.activate"
	JobFinishTest   JobKind = "test.finish"
	JobMarkAsGone   JobKind = "presence.markAsGone"
)

// Job is the payload handed to the scheduler.
type Job struct {
	Kind          JobKind `json:"kind"`
	TestID        string  `json:"testId"`
	ParticipantID string  `json:"participantId,omitempty"`
}

type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobCanceled  JobState = "canceled"
	JobFailed    JobState = "failed"
)

// ScheduledJob is a job together with its scheduler bookkeeping.
type ScheduledJob struct {
	ID    string    `json:"id"`
	RunAt time.Time `json:"runAt"`
	State JobState  `json:"state"`
	Job   Job       `json:"job"`
}
