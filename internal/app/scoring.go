package app

import (
	"math"

	"evaly-service/internal/domain"
)

// ScoreAnswer grades an answer against the question's current configuration.
// Choice questions are correct iff the selected option ids equal, as a set, the options marked
// correct; order does not matter and neither subsets nor supersets pass. Non-choice questions
// and choice questions without any correct option need manual grading and return nil.
func ScoreAnswer(question domain.Question, answer domain.TestAttemptAnswer) *bool {
	if !question.Type.IsChoice() {
		return nil
	}
	correct := make([]string, 0, len(question.Options))
	for _, opt := range question.Options {
		if opt.IsCorrect {
			correct = append(correct, opt.ID)
		}
	}
	if len(correct) == 0 {
		return nil
	}
	result := equalStringSets(dedupe(answer.AnswerOptions), correct)
	return &result
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
	}
	for _, v := range seen {
		if v != 0 {
			return false
		}
	}
	return true
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Percentage returns round(score/max*100), or 0 when max is 0.
func Percentage(score, max int) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(max) * 100))
}

// scoreSection grades the given answers against a section's questions. Unanswered questions
// still count toward the maximum. The returned map holds the correctness of each answer id.
func scoreSection(attempt domain.TestAttempt, questions []domain.Question, answers []domain.TestAttemptAnswer) (domain.AttemptScore, map[string]*bool) {
	byQuestion := make(map[string]domain.TestAttemptAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	score := domain.AttemptScore{
		TestAttemptID: attempt.ID,
		TestSectionID: attempt.TestSectionID,
	}
	verdicts := make(map[string]*bool, len(answers))
	for _, q := range questions {
		if q.IsDeleted() {
			continue
		}
		score.TotalQuestions++
		points := q.Points()
		score.MaxPossibleScore += points

		answer, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		score.AnsweredQuestions++
		verdict := ScoreAnswer(q, answer)
		verdicts[answer.ID] = verdict
		if verdict != nil && *verdict {
			score.CorrectAnswers++
			score.TotalScore += points
		}
	}
	score.Percentage = Percentage(score.TotalScore, score.MaxPossibleScore)
	return score, verdicts
}
