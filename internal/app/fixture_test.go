package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"evaly-service/internal/infra/memory"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	svc       *app.Services
	repos     app.Repositories
	scheduler *memory.Scheduler
	clock     *clock
	organizer domain.Caller
	outsider  domain.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: base}
	repos := memory.NewRepositories()
	scheduler := memory.NewScheduler(nil)
	n := 0
	var mu sync.Mutex
	svc := app.NewServices(repos, scheduler, nil,
		app.WithClock(c.Now),
		app.WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%03d", n)
		}),
	)
	return &fixture{
		t:         t,
		ctx:       context.Background(),
		svc:       svc,
		repos:     repos,
		scheduler: scheduler,
		clock:     c,
		organizer: domain.Caller{UserID: "user-org", OrganizerID: "organizer-1", OrganizationID: "acme"},
		outsider:  domain.Caller{UserID: "user-other", OrganizerID: "organizer-2", OrganizationID: "globex"},
	}
}

// advance moves the clock forward and fires every job that became due.
func (f *fixture) advance(d time.Duration) int {
	f.clock.Add(d)
	return f.scheduler.RunDue(f.ctx, f.clock.Now(), f.svc.HandleJob)
}

func (f *fixture) participant(id string) domain.Caller {
	return domain.Caller{UserID: id}
}

func (f *fixture) createTest() domain.Test {
	f.t.Helper()
	test, err := f.svc.Tests.CreateTest(f.ctx, f.organizer, domain.TestTypeSelfPaced)
	if err != nil {
		f.t.Fatalf("create test: %v", err)
	}
	return test
}

func (f *fixture) sections(testID string) []domain.TestSection {
	f.t.Helper()
	sections, err := f.svc.Sections.GetByTestID(f.ctx, f.organizer, testID)
	if err != nil {
		f.t.Fatalf("get sections: %v", err)
	}
	return sections
}

func (f *fixture) getTest(id string) domain.Test {
	f.t.Helper()
	test, err := f.repos.Tests.Get(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get test: %v", err)
	}
	return test
}

func (f *fixture) publishNow(testID string) domain.Test {
	f.t.Helper()
	test, err := f.svc.Tests.PublishTest(f.ctx, f.organizer, testID, app.PublishInput{StartOption: app.StartNow})
	if err != nil {
		f.t.Fatalf("publish: %v", err)
	}
	return test
}

func (f *fixture) addChoiceQuestion(referenceID string, points *int, options ...domain.Option) domain.Question {
	f.t.Helper()
	q, err := f.svc.Questions.Create(f.ctx, f.organizer, app.QuestionInput{
		ReferenceID:          referenceID,
		Type:                 domain.QuestionMultipleChoice,
		Question:             "pick",
		Options:              options,
		AllowMultipleAnswers: true,
		PointValue:           points,
	})
	if err != nil {
		f.t.Fatalf("create question: %v", err)
	}
	return q
}

// takeSection starts an attempt, answers the given questions and finishes it.
func (f *fixture) takeSection(who domain.Caller, sectionID string, answers map[string][]string, took time.Duration) domain.TestAttempt {
	f.t.Helper()
	attempt, err := f.svc.Attempts.StartAttempt(f.ctx, who, sectionID)
	if err != nil {
		f.t.Fatalf("start attempt: %v", err)
	}
	for questionID, options := range answers {
		if _, err := f.svc.Attempts.SubmitAnswer(f.ctx, who, attempt.ID, app.AnswerInput{
			QuestionID: questionID, AnswerOptions: options,
		}); err != nil {
			f.t.Fatalf("submit answer: %v", err)
		}
	}
	f.clock.Add(took)
	finished, err := f.svc.Attempts.FinishAttempt(f.ctx, who, attempt.ID)
	if err != nil {
		f.t.Fatalf("finish attempt: %v", err)
	}
	return finished
}

func opt(id string, correct bool) domain.Option {
	return domain.Option{ID: id, Text: id, IsCorrect: correct}
}

func intPtr(v int) *int { return &v }
