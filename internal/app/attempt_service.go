package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evaly-service/internal/domain"
	"go.uber.org/zap"
)

// AnswerInput is a participant's response to one question.
type AnswerInput struct {
	QuestionID    string
	AnswerText    *string
	AnswerOptions []string
}

// AttemptService records participants' section attempts and answers.
type AttemptService struct {
	repos  Repositories
	scores *ScoreService
	log    *zap.Logger
	now    func() time.Time
	newID  func() string
}

// StartAttempt opens an attempt on a section, or returns the one already in progress.
func (s *AttemptService) StartAttempt(ctx context.Context, caller domain.Caller, sectionID string) (domain.TestAttempt, error) {
	if caller.UserID == "" {
		return domain.TestAttempt{}, domain.ErrUnauthorized
	}
	section, err := s.repos.Sections.Get(ctx, sectionID)
	if err != nil {
		return domain.TestAttempt{}, err
	}
	if section.IsDeleted() {
		return domain.TestAttempt{}, domain.ErrNotFound
	}
	test, err := s.openTest(ctx, section.TestID)
	if err != nil {
		return domain.TestAttempt{}, err
	}

	attempt, created, err := s.repos.Attempts.GetOrCreate(ctx, domain.TestAttempt{
		ID:            s.newID(),
		TestID:        test.ID,
		TestSectionID: section.ID,
		ParticipantID: caller.UserID,
		StartedAt:     s.now(),
	})
	if err != nil {
		return domain.TestAttempt{}, fmt.Errorf("start attempt: %w", err)
	}
	if attempt.IsFinished() {
		return domain.TestAttempt{}, domain.ErrAlreadyFinished
	}
	if created {
		s.log.Info("attempt started",
			zap.String("attemptId", attempt.ID),
			zap.String("testId", test.ID),
			zap.String("participantId", caller.UserID))
	}
	return attempt, nil
}

// SubmitAnswer stores the participant's answer, replacing any earlier one for the question.
// Correctness is left to the scoring engine, so several options on a single-answer question are
// stored and later graded incorrect.
func (s *AttemptService) SubmitAnswer(ctx context.Context, caller domain.Caller, attemptID string, in AnswerInput) (domain.TestAttemptAnswer, error) {
	attempt, err := s.ownAttempt(ctx, caller, attemptID)
	if err != nil {
		return domain.TestAttemptAnswer{}, err
	}
	if attempt.IsFinished() {
		return domain.TestAttemptAnswer{}, domain.ErrAlreadyFinished
	}
	if _, err := s.openTest(ctx, attempt.TestID); err != nil {
		return domain.TestAttemptAnswer{}, err
	}

	question, err := s.repos.Questions.Get(ctx, in.QuestionID)
	if err != nil {
		return domain.TestAttemptAnswer{}, err
	}
	if question.IsDeleted() || question.ReferenceID != attempt.TestSectionID {
		return domain.TestAttemptAnswer{}, domain.ErrNotFound
	}
	options := dedupe(in.AnswerOptions)
	if question.Type.IsChoice() {
		for _, id := range options {
			if !question.HasOption(id) {
				return domain.TestAttemptAnswer{}, fmt.Errorf("%w: unknown option %q", domain.ErrInvalidArgument, id)
			}
		}
	}

	answer, err := s.repos.Answers.Upsert(ctx, domain.TestAttemptAnswer{
		ID:            s.newID(),
		TestAttemptID: attempt.ID,
		QuestionID:    question.ID,
		TestSectionID: attempt.TestSectionID,
		AnswerText:    in.AnswerText,
		AnswerOptions: options,
		UpdatedAt:     s.now(),
	})
	if err != nil {
		return domain.TestAttemptAnswer{}, fmt.Errorf("store answer: %w", err)
	}
	return answer, nil
}

// FinishAttempt closes an attempt and scores it.
func (s *AttemptService) FinishAttempt(ctx context.Context, caller domain.Caller, attemptID string) (domain.TestAttempt, error) {
	attempt, err := s.ownAttempt(ctx, caller, attemptID)
	if err != nil {
		return domain.TestAttempt{}, err
	}
	if attempt.IsFinished() {
		return domain.TestAttempt{}, domain.ErrAlreadyFinished
	}
	now := s.now()
	attempt.FinishedAt = &now
	if err := s.repos.Attempts.Update(ctx, attempt); err != nil {
		return domain.TestAttempt{}, fmt.Errorf("finish attempt: %w", err)
	}

	if _, err := s.scores.scoreAttempt(ctx, attempt, true); err != nil {
		s.log.Warn("scoring finished attempt failed", zap.String("attemptId", attempt.ID), zap.Error(err))
	}
	return attempt, nil
}

// GetAttempts lists the caller's own attempts for a test.
func (s *AttemptService) GetAttempts(ctx context.Context, caller domain.Caller, testID string) ([]domain.TestAttempt, error) {
	if caller.UserID == "" {
		return nil, nil
	}
	return s.repos.Attempts.FindActiveByParticipant(ctx, testID, caller.UserID)
}

func (s *AttemptService) ownAttempt(ctx context.Context, caller domain.Caller, attemptID string) (domain.TestAttempt, error) {
	if caller.UserID == "" {
		return domain.TestAttempt{}, domain.ErrUnauthorized
	}
	attempt, err := s.repos.Attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.TestAttempt{}, err
	}
	if attempt.DeletedAt != nil {
		return domain.TestAttempt{}, domain.ErrNotFound
	}
	if attempt.ParticipantID != caller.UserID {
		return domain.TestAttempt{}, domain.ErrUnauthorized
	}
	return attempt, nil
}

// openTest loads a test that participants may currently work on.
func (s *AttemptService) openTest(ctx context.Context, testID string) (domain.Test, error) {
	test, err := s.repos.Tests.Get(ctx, testID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Test{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Test{}, err
	}
	switch {
	case test.IsDeleted():
		return domain.Test{}, domain.ErrNotFound
	case test.FinishedAt != nil:
		return domain.Test{}, domain.ErrTestFinished
	case !test.IsPublished:
		return domain.Test{}, domain.ErrTestNotPublished
	}
	return test, nil
}
