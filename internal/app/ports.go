package app

import (
	"context"
	"time"

	"evaly-service/internal/domain"
)

// Repository ports. Get lookups return domain.ErrNotFound when the id is unknown and return
// soft-deleted rows as-is; Find/List lookups only return rows whose DeletedAt is nil.

// OrganizerRepository resolves authenticated users to the organization they manage.
type OrganizerRepository interface {
	Insert(ctx context.Context, organizer domain.Organizer) error
	FindByUserID(ctx context.Context, userID string) (domain.Organizer, error)
}

type TestRepository interface {
	Insert(ctx context.Context, test domain.Test) error
	Get(ctx context.Context, id string) (domain.Test, error)
	Update(ctx context.Context, test domain.Test) error
	FindActiveByOrganization(ctx context.Context, organizationID string) ([]domain.Test, error)
}

// SectionRepository stores test sections; FindActiveByTestID returns them sorted by Order.
type SectionRepository interface {
	Insert(ctx context.Context, section domain.TestSection) error
	Get(ctx context.Context, id string) (domain.TestSection, error)
	Update(ctx context.Context, section domain.TestSection) error
	FindActiveByTestID(ctx context.Context, testID string) ([]domain.TestSection, error)
}

// QuestionRepository stores questions of sections and banks; FindActiveByReferenceID sorts by Order.
type QuestionRepository interface {
	Insert(ctx context.Context, question domain.Question) error
	Get(ctx context.Context, id string) (domain.Question, error)
	Update(ctx context.Context, question domain.Question) error
	FindActiveByReferenceID(ctx context.Context, referenceID string) ([]domain.Question, error)
}

type QuestionBankRepository interface {
	Insert(ctx context.Context, bank domain.QuestionBank) error
	Get(ctx context.Context, id string) (domain.QuestionBank, error)
	Update(ctx context.Context, bank domain.QuestionBank) error
	FindActiveByOrganization(ctx context.Context, organizationID string) ([]domain.QuestionBank, error)
}

// AttemptRepository stores section attempts.
// GetOrCreate returns the existing non-deleted attempt for (section, participant) or inserts
// the given one; created reports which happened.
type AttemptRepository interface {
	GetOrCreate(ctx context.Context, attempt domain.TestAttempt) (stored domain.TestAttempt, created bool, err error)
	Get(ctx context.Context, id string) (domain.TestAttempt, error)
	Update(ctx context.Context, attempt domain.TestAttempt) error
	FindActiveByTestID(ctx context.Context, testID string) ([]domain.TestAttempt, error)
	FindActiveByParticipant(ctx context.Context, testID, participantID string) ([]domain.TestAttempt, error)
}

// AnswerRepository stores one answer row per (attempt, question).
// Upsert inserts or replaces the answer payload keyed on that pair and returns the stored row.
type AnswerRepository interface {
	Upsert(ctx context.Context, answer domain.TestAttemptAnswer) (domain.TestAttemptAnswer, error)
	SetCorrectness(ctx context.Context, id string, isCorrect *bool) error
	FindActiveByAttemptID(ctx context.Context, attemptID string) ([]domain.TestAttemptAnswer, error)
	FindActiveBySectionID(ctx context.Context, sectionID string) ([]domain.TestAttemptAnswer, error)
}

// PresenceRepository stores ephemeral liveness rows.
// ListPresent returns present rows in index (creation) order, at most limit of them.
type PresenceRepository interface {
	Get(ctx context.Context, testID, participantID string) (domain.TestPresence, error)
	Put(ctx context.Context, presence domain.TestPresence) error
	ListPresent(ctx context.Context, testID string, limit int) ([]domain.TestPresence, error)
}

// Scheduler runs jobs at or after a point in time.
// Cancel returns domain.ErrJobAlreadyFired when the job ran or is running and
// domain.ErrJobNotFound for unknown ids.
type Scheduler interface {
	RunAt(ctx context.Context, at time.Time, job domain.Job) (string, error)
	Cancel(ctx context.Context, jobID string) error
	State(ctx context.Context, jobID string) (domain.JobState, error)
}

// JobHandler executes a fired job.
type JobHandler func(ctx context.Context, job domain.Job) error

// Repositories bundles every storage port the services need.
type Repositories struct {
	Organizers    OrganizerRepository
	Tests         TestRepository
	Sections      SectionRepository
	Questions     QuestionRepository
	QuestionBanks QuestionBankRepository
	Attempts      AttemptRepository
	Answers       AnswerRepository
	Presence      PresenceRepository
}
