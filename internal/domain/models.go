package domain

import (
	"encoding/json"
	"time"
)

// TestType distinguishes organizer-paced tests from ones participants take on their own.
type TestType string

const (
	TestTypeLive      TestType = "live"
	TestTypeSelfPaced TestType = "self-paced"
)

// Valid reports whether t is a known test type.
func (t TestType) Valid() bool {
	return t == TestTypeLive || t == TestTypeSelfPaced
}

type TestAccess string

const (
	AccessPublic  TestAccess = "public"
	AccessPrivate TestAccess = "private"
)

func (a TestAccess) Valid() bool {
	return a == AccessPublic || a == AccessPrivate
}

// Caller identifies who is making a request. It is resolved once at the transport boundary.
// Participants only carry a UserID; organizers also carry their organizer and organization ids.
type Caller struct {
	UserID         string
	OrganizerID    string
	OrganizationID string
}

// IsOrganizer reports whether the caller resolved to an organizer of some organization.
func (c Caller) IsOrganizer() bool {
	return c.OrganizerID != "" && c.OrganizationID != ""
}

// Organizer links an authenticated user to the organization they manage.
type Organizer struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Test is the root aggregate organizers publish to participants.
type Test struct {
	ID                    string     `json:"id"`
	OrganizationID        string     `json:"organizationId"`
	CreatedByOrganizerID  string     `json:"createdByOrganizerId"`
	Title                 string     `json:"title"`
	Description           string     `json:"description,omitempty"`
	Type                  TestType   `json:"type"`
	Access                TestAccess `json:"access"`
	IsPublished           bool       `json:"isPublished"`
	ShowResultImmediately bool       `json:"showResultImmediately"`
	ScheduledStartAt      *time.Time `json:"scheduledStartAt,omitempty"`
	ScheduledEndAt        *time.Time `json:"scheduledEndAt,omitempty"`
	ActivationJobID       string     `json:"activationJobId,omitempty"`
	FinishJobID           string     `json:"finishJobId,omitempty"`
	FinishedAt            *time.Time `json:"finishedAt,omitempty"`
	DeletedAt             *time.Time `json:"deletedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func (t Test) IsDeleted() bool { return t.DeletedAt != nil }

// IsActive reports whether participants can currently take the test.
func (t Test) IsActive() bool {
	return t.IsPublished && t.FinishedAt == nil && t.DeletedAt == nil
}

// TestSection groups questions; Order is dense 1..N among the non-deleted sections of a test.
type TestSection struct {
	ID          string     `json:"id"`
	TestID      string     `json:"testId"`
	Order       int        `json:"order"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Duration    *int       `json:"duration,omitempty"` // minutes
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (s TestSection) IsDeleted() bool { return s.DeletedAt != nil }

// QuestionBank is a reusable pool of questions owned by an organization.
type QuestionBank struct {
	ID                   string     `json:"id"`
	OrganizationID       string     `json:"organizationId"`
	CreatedByOrganizerID string     `json:"createdByOrganizerId"`
	Title                string     `json:"title"`
	DeletedAt            *time.Time `json:"deletedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

func (b QuestionBank) IsDeleted() bool { return b.DeletedAt != nil }

// TestAttempt is one participant's run through one section.
type TestAttempt struct {
	ID            string     `json:"id"`
	TestID        string     `json:"testId"`
	TestSectionID string     `json:"testSectionId"`
	ParticipantID string     `json:"participantId"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

func (a TestAttempt) IsFinished() bool { return a.FinishedAt != nil }

// Duration is the time between start and finish; zero while in progress.
func (a TestAttempt) Duration() time.Duration {
	if a.FinishedAt == nil {
		return 0
	}
	return a.FinishedAt.Sub(a.StartedAt)
}

// TestAttemptAnswer is unique per (attempt, question). IsCorrect is owned by the scoring engine.
type TestAttemptAnswer struct {
	ID            string     `json:"id"`
	TestAttemptID string     `json:"testAttemptId"`
	QuestionID    string     `json:"questionId"`
	TestSectionID string     `json:"testSectionId"`
	AnswerText    *string    `json:"answerText,omitempty"`
	AnswerOptions []string   `json:"answerOptions,omitempty"`
	IsCorrect     *bool      `json:"isCorrect,omitempty"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TestPresence is the ephemeral liveness row of a participant in a test.
type TestPresence struct {
	TestID          string          `json:"testId"`
	ParticipantID   string          `json:"participantId"`
	Data            json.RawMessage `json:"data,omitempty"`
	Present         bool            `json:"present"`
	Created         time.Time       `json:"created"`
	LatestJoinedAt  time.Time       `json:"latestJoinedAt"`
	MarkAsGoneJobID string          `json:"-"`
}
