package app_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
)

func TestStartAttemptReturnsAttemptInProgress(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()
	section := f.sections(test.ID)[0]
	f.publishNow(test.ID)
	p := f.participant("p1")

	first, err := f.svc.Attempts.StartAttempt(f.ctx, p, section.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	again, err := f.svc.Attempts.StartAttempt(f.ctx, p, section.ID)
	if err != nil {
		t.Fatalf("start again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected the same attempt, got %s and %s", first.ID, again.ID)
	}

	if _, err := f.svc.Attempts.FinishAttempt(f.ctx, p, first.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := f.svc.Attempts.FinishAttempt(f.ctx, p, first.ID); !errors.Is(err, domain.ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished, got %v", err)
	}
	if _, err := f.svc.Attempts.StartAttempt(f.ctx, p, section.ID); !errors.Is(err, domain.ErrAlreadyFinished) {
		t.Fatalf("expected finished section to stay closed, got %v", err)
	}
}

func TestStartAttemptRequiresOpenTest(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()
	section := f.sections(test.ID)[0]
	p := f.participant("p1")

	if _, err := f.svc.Attempts.StartAttempt(f.ctx, p, section.ID); !errors.Is(err, domain.ErrTestNotPublished) {
		t.Fatalf("expected ErrTestNotPublished, got %v", err)
	}
	f.publishNow(test.ID)
	if _, err := f.svc.Tests.StopTest(f.ctx, f.organizer, test.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := f.svc.Attempts.StartAttempt(f.ctx, p, section.ID); !errors.Is(err, domain.ErrTestFinished) {
		t.Fatalf("expected ErrTestFinished, got %v", err)
	}
	if _, err := f.svc.Attempts.StartAttempt(f.ctx, domain.Caller{}, section.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for anonymous caller, got %v", err)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()
	section := f.sections(test.ID)[0]
	single, err := f.svc.Questions.Create(f.ctx, f.organizer, app.QuestionInput{
		ReferenceID: section.ID,
		Type:        domain.QuestionYesOrNo,
		Question:    "ready?",
		Options:     []domain.Option{opt("yes", true), opt("no", false)},
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	f.publishNow(test.ID)
	p := f.participant("p1")
	attempt, err := f.svc.Attempts.StartAttempt(f.ctx, p, section.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := f.svc.Attempts.SubmitAnswer(f.ctx, p, attempt.ID, app.AnswerInput{
		QuestionID: single.ID, AnswerOptions: []string{"yes", "no"},
	}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected single answer violation, got %v", err)
	}
	if _, err := f.svc.Attempts.SubmitAnswer(f.ctx, p, attempt.ID, app.AnswerInput{
		QuestionID: single.ID, AnswerOptions: []string{"maybe"},
	}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected unknown option violation, got %v", err)
	}
	if _, err := f.svc.Attempts.SubmitAnswer(f.ctx, f.participant("p2"), attempt.ID, app.AnswerInput{
		QuestionID: single.ID, AnswerOptions: []string{"yes"},
	}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected foreign attempt to be rejected, got %v", err)
	}

	first, err := f.svc.Attempts.SubmitAnswer(f.ctx, p, attempt.ID, app.AnswerInput{
		QuestionID: single.ID, AnswerOptions: []string{"no"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := f.svc.Attempts.SubmitAnswer(f.ctx, p, attempt.ID, app.AnswerInput{
		QuestionID: single.ID, AnswerOptions: []string{"yes"},
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("resubmission must replace the answer, got ids %s and %s", first.ID, second.ID)
	}
	answers, err := f.repos.Answers.FindActiveByAttemptID(f.ctx, attempt.ID)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 1 || answers[0].AnswerOptions[0] != "yes" {
		t.Fatalf("expected one answer selecting yes, got %+v", answers)
	}
}

func TestSubmitAnswerRejectsQuestionsOfOtherSections(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()
	if _, err := f.svc.Sections.Create(f.ctx, f.organizer, test.ID); err != nil {
		t.Fatalf("add section: %v", err)
	}
	sections := f.sections(test.ID)
	other := f.addChoiceQuestion(sections[1].ID, nil, opt("a", true))
	f.publishNow(test.ID)
	p := f.participant("p1")
	attempt, err := f.svc.Attempts.StartAttempt(f.ctx, p, sections[0].ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.Attempts.SubmitAnswer(f.ctx, p, attempt.ID, app.AnswerInput{
		QuestionID: other.ID, AnswerOptions: []string{"a"},
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAttemptsListsOwnAttempts(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()
	section := f.sections(test.ID)[0]
	f.publishNow(test.ID)
	f.takeSection(f.participant("p1"), section.ID, nil, 0)
	f.takeSection(f.participant("p2"), section.ID, nil, 0)

	attempts, err := f.svc.Attempts.GetAttempts(f.ctx, f.participant("p1"), test.ID)
	if err != nil {
		t.Fatalf("get attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].ParticipantID != "p1" {
		t.Fatalf("expected only p1's attempt, got %+v", attempts)
	}
	none, err := f.svc.Attempts.GetAttempts(f.ctx, domain.Caller{}, test.ID)
	if err != nil || none != nil {
		t.Fatalf("expected nil for anonymous caller, got %+v, %v", none, err)
	}
}

func TestConcurrentAnswersToOneAttemptAllSurvive(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()
	section := f.sections(test.ID)[0]
	const n = 12
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = f.addChoiceQuestion(section.ID, nil, opt("a", true), opt("b", false))
	}
	f.publishNow(test.ID)
	p := f.participant("p1")
	attempt, err := f.svc.Attempts.StartAttempt(f.ctx, p, section.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	want := make(map[string]string, n)
	for i, q := range questions {
		want[q.ID] = "a"
		if i%2 == 1 {
			want[q.ID] = "b"
		}
	}
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, q := range questions {
		wg.Add(1)
		go func(questionID, option string) {
			defer wg.Done()
			if _, err := f.svc.Attempts.SubmitAnswer(f.ctx, p, attempt.ID, app.AnswerInput{
				QuestionID: questionID, AnswerOptions: []string{option},
			}); err != nil {
				errs <- fmt.Errorf("question %s: %w", questionID, err)
			}
		}(q.ID, want[q.ID])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("submit: %v", err)
	}

	answers, err := f.repos.Answers.FindActiveByAttemptID(f.ctx, attempt.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != n {
		t.Fatalf("expected %d answers, got %d", n, len(answers))
	}
	seen := map[string]bool{}
	for _, a := range answers {
		if seen[a.QuestionID] {
			t.Fatalf("question %s answered twice", a.QuestionID)
		}
		seen[a.QuestionID] = true
		if len(a.AnswerOptions) != 1 || a.AnswerOptions[0] != want[a.QuestionID] {
			t.Fatalf("question %s: expected [%s], got %v", a.QuestionID, want[a.QuestionID], a.AnswerOptions)
		}
	}
}

func TestSingleAnswerQuestionGradesSupersetIncorrect(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()
	section := f.sections(test.ID)[0]
	q, err := f.svc.Questions.Create(f.ctx, f.organizer, app.QuestionInput{
		ReferenceID: section.ID,
		Type:        domain.QuestionMultipleChoice,
		Question:    "pick one",
		Options:     []domain.Option{opt("a", true), opt("b", false)},
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	f.publishNow(test.ID)
	p := f.participant("p1")
	attempt, err := f.svc.Attempts.StartAttempt(f.ctx, p, section.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	answer, err := f.svc.Attempts.SubmitAnswer(f.ctx, p, attempt.ID, app.AnswerInput{
		QuestionID: q.ID, AnswerOptions: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("expected superset to be stored, got %v", err)
	}
	if len(answer.AnswerOptions) != 2 {
		t.Fatalf("expected both options stored, got %v", answer.AnswerOptions)
	}
	if _, err := f.svc.Attempts.FinishAttempt(f.ctx, p, attempt.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	answers, _ := f.repos.Answers.FindActiveByAttemptID(f.ctx, attempt.ID)
	if len(answers) != 1 || answers[0].IsCorrect == nil || *answers[0].IsCorrect {
		t.Fatalf("expected the superset graded incorrect, got %+v", answers)
	}
}
