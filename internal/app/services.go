package app

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MarkAsGoneAfter is how long a participant stays present without a heartbeat.
	MarkAsGoneAfter = 3000 * time.Millisecond
	// PresenceListLimit caps ListPresence results.
	PresenceListLimit = 200
)

type options struct {
	now             func() time.Time
	newID           func() string
	markAsGoneAfter time.Duration
	presenceLimit   int
}

// Option customizes NewServices.
type Option func(*options)

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides uuid-based id generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func WithMarkAsGoneAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.markAsGoneAfter = d
		}
	}
}

func WithPresenceListLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.presenceLimit = n
		}
	}
}

// Services wires every use case over a shared set of repositories and one scheduler.
type Services struct {
	Tests         *TestService
	Sections      *SectionService
	Questions     *QuestionService
	QuestionBanks *QuestionBankService
	Attempts      *AttemptService
	Scores        *ScoreService
	Analytics     *AnalyticsService
	Presence      *PresenceService
	Callers       *CallerResolver

	log *zap.Logger
}

func NewServices(repos Repositories, scheduler Scheduler, log *zap.Logger, opts ...Option) *Services {
	o := options{
		now:             time.Now,
		newID:           uuid.NewString,
		markAsGoneAfter: MarkAsGoneAfter,
		presenceLimit:   PresenceListLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}

	guard := &guard{tests: repos.Tests, sections: repos.Sections, banks: repos.QuestionBanks}
	scores := &ScoreService{repos: repos, guard: guard, log: log.Named("scores")}
	questions := &QuestionService{repos: repos, guard: guard, now: o.now, newID: o.newID}
	return &Services{
		Tests: &TestService{
			repos: repos, guard: guard, scheduler: scheduler,
			log: log.Named("tests"), now: o.now, newID: o.newID,
		},
		Sections: &SectionService{
			repos: repos, guard: guard, log: log.Named("sections"), now: o.now, newID: o.newID,
		},
		Questions: questions,
		QuestionBanks: &QuestionBankService{
			repos: repos, guard: guard, questions: questions, now: o.now, newID: o.newID,
		},
		Attempts: &AttemptService{
			repos: repos, scores: scores, log: log.Named("attempts"), now: o.now, newID: o.newID,
		},
		Scores:    scores,
		Analytics: &AnalyticsService{repos: repos, guard: guard, scores: scores},
		Presence: &PresenceService{
			repo: repos.Presence, tests: repos.Tests, scheduler: scheduler, log: log.Named("presence"),
			now: o.now, markAsGoneAfter: o.markAsGoneAfter, limit: o.presenceLimit,
		},
		Callers: &CallerResolver{organizers: repos.Organizers},
		log:     log,
	}
}
