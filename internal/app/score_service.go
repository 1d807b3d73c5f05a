package app

import (
	"context"
	"fmt"

	"evaly-service/internal/domain"
	"go.uber.org/zap"
)

// ScoreService computes attempt and participant scores.
type ScoreService struct {
	repos Repositories
	guard *guard
	log   *zap.Logger
}

// CalculateAttemptScore scores an attempt and stores each answer's correctness.
func (s *ScoreService) CalculateAttemptScore(ctx context.Context, attemptID string) (domain.AttemptScore, error) {
	attempt, err := s.repos.Attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.AttemptScore{}, err
	}
	return s.scoreAttempt(ctx, attempt, true)
}

// AggregateParticipantScore sums the participant's finished attempts for a test.
// The participant has completed the test when every non-deleted section has exactly one
// finished attempt.
func (s *ScoreService) AggregateParticipantScore(ctx context.Context, testID, participantID string) (domain.ParticipantScore, error) {
	return s.aggregate(ctx, testID, participantID, true)
}

// CalculateAndStoreScore is AggregateParticipantScore for the test owner or the participant.
func (s *ScoreService) CalculateAndStoreScore(ctx context.Context, caller domain.Caller, testID, participantID string) (domain.ParticipantScore, error) {
	if caller.UserID == "" || caller.UserID != participantID {
		test, ok, err := s.guard.ownedTest(ctx, caller, testID)
		if err != nil {
			return domain.ParticipantScore{}, err
		}
		if !ok || test.IsDeleted() {
			return domain.ParticipantScore{}, domain.ErrUnauthorized
		}
	}
	return s.aggregate(ctx, testID, participantID, true)
}

func (s *ScoreService) aggregate(ctx context.Context, testID, participantID string, persist bool) (domain.ParticipantScore, error) {
	sections, err := s.repos.Sections.FindActiveByTestID(ctx, testID)
	if err != nil {
		return domain.ParticipantScore{}, fmt.Errorf("load sections: %w", err)
	}
	attempts, err := s.repos.Attempts.FindActiveByParticipant(ctx, testID, participantID)
	if err != nil {
		return domain.ParticipantScore{}, fmt.Errorf("load attempts: %w", err)
	}

	result := domain.ParticipantScore{
		TestID:        testID,
		ParticipantID: participantID,
		Attempts:      []domain.AttemptScore{},
	}
	finishedPerSection := make(map[string]int, len(sections))
	for _, attempt := range attempts {
		if !attempt.IsFinished() {
			continue
		}
		finishedPerSection[attempt.TestSectionID]++
		score, err := s.scoreAttempt(ctx, attempt, persist)
		if err != nil {
			return domain.ParticipantScore{}, err
		}
		result.TotalScore += score.TotalScore
		result.MaxPossibleScore += score.MaxPossibleScore
		result.Attempts = append(result.Attempts, score)
	}
	result.Percentage = Percentage(result.TotalScore, result.MaxPossibleScore)
	result.IsCompleted = isCompleted(sections, finishedPerSection)
	return result, nil
}

func isCompleted(sections []domain.TestSection, finishedPerSection map[string]int) bool {
	if len(sections) == 0 {
		return false
	}
	for _, section := range sections {
		if finishedPerSection[section.ID] != 1 {
			return false
		}
	}
	return true
}

func (s *ScoreService) scoreAttempt(ctx context.Context, attempt domain.TestAttempt, persist bool) (domain.AttemptScore, error) {
	questions, err := s.repos.Questions.FindActiveByReferenceID(ctx, attempt.TestSectionID)
	if err != nil {
		return domain.AttemptScore{}, fmt.Errorf("load questions: %w", err)
	}
	answers, err := s.repos.Answers.FindActiveByAttemptID(ctx, attempt.ID)
	if err != nil {
		return domain.AttemptScore{}, fmt.Errorf("load answers: %w", err)
	}

	score, verdicts := scoreSection(attempt, questions, answers)
	if !persist {
		return score, nil
	}
	for _, answer := range answers {
		verdict, ok := verdicts[answer.ID]
		if !ok || sameVerdict(answer.IsCorrect, verdict) {
			continue
		}
		if err := s.repos.Answers.SetCorrectness(ctx, answer.ID, verdict); err != nil {
			return domain.AttemptScore{}, fmt.Errorf("store correctness: %w", err)
		}
	}
	s.log.Debug("attempt scored",
		zap.String("attemptId", attempt.ID),
		zap.Int("totalScore", score.TotalScore),
		zap.Int("maxPossibleScore", score.MaxPossibleScore))
	return score, nil
}

func sameVerdict(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
