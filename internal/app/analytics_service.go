package app

import (
	"context"
	"fmt"
	"math"
	"sort"

	"evaly-service/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// progressAverageTimeIsTotal keeps GetProgress reporting the summed seconds of all submitted
// participants rather than their mean, which is what dashboards currently receive.
// TODO: divide by submissions once product confirms the dashboard expects a mean.
const progressAverageTimeIsTotal = true

const (
	hardestEasiestLimit = 5
	bucketWidth         = 20
)

// AnalyticsService builds cross-participant statistics for a test's owner.
// Queries return nil results, not errors, when the caller does not own the test.
type AnalyticsService struct {
	repos  Repositories
	guard  *guard
	scores *ScoreService
	sf     singleflight.Group
}

// testData is everything analytics reads about one test.
type testData struct {
	sections  []domain.TestSection
	questions map[string][]domain.Question // by section id
	attempts  []domain.TestAttempt
	answers   map[string][]domain.TestAttemptAnswer // by attempt id
}

// GetProgress reports how many participants submitted every section.
func (s *AnalyticsService) GetProgress(ctx context.Context, caller domain.Caller, testID string) (*domain.Progress, error) {
	if ok, err := s.owns(ctx, caller, testID); err != nil || !ok {
		return nil, err
	}
	sections, err := s.repos.Sections.FindActiveByTestID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	attempts, err := s.repos.Attempts.FindActiveByTestID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	progress := computeProgress(len(sections), attempts)
	return &progress, nil
}

func computeProgress(sectionCount int, attempts []domain.TestAttempt) domain.Progress {
	order, byParticipant := groupByParticipant(attempts)

	var progress domain.Progress
	progress.TotalParticipants = len(order)
	for _, participantID := range order {
		finished := 0
		var seconds float64
		for _, a := range byParticipant[participantID] {
			if a.IsFinished() {
				finished++
				seconds += a.Duration().Seconds()
			}
		}
		if finished == sectionCount {
			progress.Submissions++
			progress.AverageTime += seconds
		} else {
			progress.WorkingInProgress++
		}
	}
	if !progressAverageTimeIsTotal && progress.Submissions > 0 {
		progress.AverageTime /= float64(progress.Submissions)
	}
	progress.CompletionRate = Percentage(progress.Submissions, progress.TotalParticipants)
	return progress
}

// GetResultsWithScores returns one scored row per participant, best percentage first.
func (s *AnalyticsService) GetResultsWithScores(ctx context.Context, caller domain.Caller, testID string) ([]domain.ParticipantResult, error) {
	if ok, err := s.owns(ctx, caller, testID); err != nil || !ok {
		return nil, err
	}
	attempts, err := s.repos.Attempts.FindActiveByTestID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	order, byParticipant := groupByParticipant(attempts)

	results := make([]domain.ParticipantResult, 0, len(order))
	for _, participantID := range order {
		score, err := s.scores.aggregate(ctx, testID, participantID, false)
		if err != nil {
			return nil, err
		}
		result := domain.ParticipantResult{
			ParticipantID:    participantID,
			TotalScore:       score.TotalScore,
			MaxPossibleScore: score.MaxPossibleScore,
			Percentage:       score.Percentage,
			IsCompleted:      score.IsCompleted,
			AttemptCount:     len(byParticipant[participantID]),
		}
		for _, a := range byParticipant[participantID] {
			if a.FinishedAt != nil && (result.CompletedAt == nil || a.FinishedAt.After(*result.CompletedAt)) {
				finished := *a.FinishedAt
				result.CompletedAt = &finished
			}
		}
		results = append(results, result)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Percentage > results[j].Percentage })
	return results, nil
}

// GetSummary counts, per question of a section, how many respondents picked each option.
func (s *AnalyticsService) GetSummary(ctx context.Context, caller domain.Caller, testID, sectionID string) ([]domain.QuestionSummary, error) {
	if ok, err := s.owns(ctx, caller, testID); err != nil || !ok {
		return nil, err
	}
	section, err := s.repos.Sections.Get(ctx, sectionID)
	if err != nil || section.TestID != testID || section.IsDeleted() {
		return nil, nil
	}
	questions, err := s.repos.Questions.FindActiveByReferenceID(ctx, section.ID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	answers, err := s.repos.Answers.FindActiveBySectionID(ctx, section.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	return summarize(questions, answers), nil
}

func summarize(questions []domain.Question, answers []domain.TestAttemptAnswer) []domain.QuestionSummary {
	counts := make(map[string]map[string]int, len(questions))
	responses := make(map[string]int, len(questions))
	for _, a := range answers {
		responses[a.QuestionID]++
		if counts[a.QuestionID] == nil {
			counts[a.QuestionID] = make(map[string]int)
		}
		for _, id := range a.AnswerOptions {
			counts[a.QuestionID][id]++
		}
	}

	out := make([]domain.QuestionSummary, 0, len(questions))
	for _, q := range questions {
		summary := domain.QuestionSummary{
			QuestionID:     q.ID,
			Order:          q.Order,
			Question:       q.Question,
			Type:           q.Type,
			TotalResponses: responses[q.ID],
			Options:        make([]domain.OptionSummary, 0, len(q.Options)),
		}
		for _, opt := range q.Options {
			summary.Options = append(summary.Options, domain.OptionSummary{
				ID:        opt.ID,
				Text:      opt.Text,
				IsCorrect: opt.IsCorrect,
				Count:     counts[q.ID][opt.ID],
			})
		}
		out = append(out, summary)
	}
	return out
}

// GetComprehensiveAnalytics builds the full dashboard for a test. Concurrent requests for the
// same test share one computation; the shared load outlives any single caller, and each caller
// stops waiting when its own context ends.
func (s *AnalyticsService) GetComprehensiveAnalytics(ctx context.Context, caller domain.Caller, testID string) (*domain.Analytics, error) {
	if ok, err := s.owns(ctx, caller, testID); err != nil || !ok {
		return nil, err
	}
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(testID, func() (interface{}, error) {
		data, err := s.load(shared, testID)
		if err != nil {
			return nil, err
		}
		analytics := buildAnalytics(data)
		return &analytics, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Analytics), nil
	}
}

func (s *AnalyticsService) load(ctx context.Context, testID string) (testData, error) {
	var data testData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sections, err := s.repos.Sections.FindActiveByTestID(gctx, testID)
		if err != nil {
			return fmt.Errorf("load sections: %w", err)
		}
		data.sections = sections
		return nil
	})
	g.Go(func() error {
		attempts, err := s.repos.Attempts.FindActiveByTestID(gctx, testID)
		if err != nil {
			return fmt.Errorf("load attempts: %w", err)
		}
		data.attempts = attempts
		return nil
	})
	if err := g.Wait(); err != nil {
		return testData{}, err
	}

	data.questions = make(map[string][]domain.Question, len(data.sections))
	data.answers = make(map[string][]domain.TestAttemptAnswer, len(data.attempts))
	questions := make([][]domain.Question, len(data.sections))
	answers := make([][]domain.TestAttemptAnswer, len(data.attempts))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, section := range data.sections {
		g.Go(func() error {
			qs, err := s.repos.Questions.FindActiveByReferenceID(gctx, section.ID)
			if err != nil {
				return fmt.Errorf("load questions: %w", err)
			}
			questions[i] = qs
			return nil
		})
	}
	for i, attempt := range data.attempts {
		g.Go(func() error {
			as, err := s.repos.Answers.FindActiveByAttemptID(gctx, attempt.ID)
			if err != nil {
				return fmt.Errorf("load answers: %w", err)
			}
			answers[i] = as
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return testData{}, err
	}
	for i, section := range data.sections {
		data.questions[section.ID] = questions[i]
	}
	for i, attempt := range data.attempts {
		data.answers[attempt.ID] = answers[i]
	}
	return data, nil
}

func buildAnalytics(data testData) domain.Analytics {
	order, byParticipant := groupByParticipant(data.attempts)

	attemptScores := make(map[string]domain.AttemptScore, len(data.attempts))
	verdicts := make(map[string]*bool)
	for _, attempt := range data.attempts {
		if !attempt.IsFinished() {
			continue
		}
		score, v := scoreSection(attempt, data.questions[attempt.TestSectionID], data.answers[attempt.ID])
		attemptScores[attempt.ID] = score
		for id, verdict := range v {
			verdicts[id] = verdict
		}
	}

	var (
		percentages  []int
		totalSeconds float64
		completed    int
	)
	for _, participantID := range order {
		finishedPerSection := make(map[string]int)
		var total, max int
		var seconds float64
		for _, a := range byParticipant[participantID] {
			score, ok := attemptScores[a.ID]
			if !ok {
				continue
			}
			finishedPerSection[a.TestSectionID]++
			total += score.TotalScore
			max += score.MaxPossibleScore
			seconds += a.Duration().Seconds()
		}
		if len(finishedPerSection) == 0 {
			continue
		}
		percentages = append(percentages, Percentage(total, max))
		if isCompleted(data.sections, finishedPerSection) {
			completed++
			totalSeconds += seconds
		}
	}

	overview := domain.AnalyticsOverview{
		TotalParticipants:     len(order),
		CompletedParticipants: completed,
		CompletionRate:        Percentage(completed, len(order)),
	}
	if len(percentages) > 0 {
		sum := 0
		for _, p := range percentages {
			sum += p
		}
		overview.AverageScore = round2(float64(sum) / float64(len(percentages)))
		sorted := append([]int(nil), percentages...)
		sort.Ints(sorted)
		// Upper-middle element for even counts.
		overview.MedianScore = sorted[len(sorted)/2]
		overview.LowestScore = sorted[0]
		overview.HighestScore = sorted[len(sorted)-1]
	}
	if completed > 0 {
		overview.AverageTime = round2(totalSeconds / float64(completed))
	}

	performance := questionPerformance(data, verdicts)
	return domain.Analytics{
		Overview:           overview,
		ScoreDistribution:  distribution(percentages),
		HardestQuestions:   rankQuestions(performance, true),
		EasiestQuestions:   rankQuestions(performance, false),
		SectionPerformance: sectionPerformance(data, attemptScores),
	}
}

// distribution buckets percentages into 0-20, 21-40, 41-60, 61-80 and 81-100.
func distribution(percentages []int) []domain.ScoreBucket {
	buckets := []domain.ScoreBucket{
		{Range: "0-20"}, {Range: "21-40"}, {Range: "41-60"}, {Range: "61-80"}, {Range: "81-100"},
	}
	for _, p := range percentages {
		idx := 0
		if p > 0 {
			idx = (p - 1) / bucketWidth
		}
		if idx >= len(buckets) {
			idx = len(buckets) - 1
		}
		buckets[idx].Count++
	}
	return buckets
}

// questionPerformance computes success rates of questions that received at least one graded
// answer, in section then question order.
func questionPerformance(data testData, verdicts map[string]*bool) []domain.QuestionPerformance {
	stats := make(map[string]*domain.QuestionPerformance)
	var order []string
	for _, section := range data.sections {
		for _, q := range data.questions[section.ID] {
			stats[q.ID] = &domain.QuestionPerformance{
				QuestionID:    q.ID,
				TestSectionID: section.ID,
				Question:      q.Question,
				Order:         q.Order,
			}
			order = append(order, q.ID)
		}
	}
	for _, attempt := range data.attempts {
		for _, answer := range data.answers[attempt.ID] {
			verdict, ok := verdicts[answer.ID]
			stat := stats[answer.QuestionID]
			if !ok || verdict == nil || stat == nil {
				continue
			}
			stat.TotalAnswers++
			if *verdict {
				stat.Correct++
			}
		}
	}

	out := make([]domain.QuestionPerformance, 0, len(order))
	for _, id := range order {
		stat := stats[id]
		if stat.TotalAnswers == 0 {
			continue
		}
		stat.SuccessRate = round2(float64(stat.Correct) / float64(stat.TotalAnswers) * 100)
		out = append(out, *stat)
	}
	return out
}

func rankQuestions(performance []domain.QuestionPerformance, hardest bool) []domain.QuestionPerformance {
	ranked := append([]domain.QuestionPerformance(nil), performance...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if hardest {
			return ranked[i].SuccessRate < ranked[j].SuccessRate
		}
		return ranked[i].SuccessRate > ranked[j].SuccessRate
	})
	if len(ranked) > hardestEasiestLimit {
		ranked = ranked[:hardestEasiestLimit]
	}
	return ranked
}

func sectionPerformance(data testData, scores map[string]domain.AttemptScore) []domain.SectionPerformance {
	out := make([]domain.SectionPerformance, 0, len(data.sections))
	for _, section := range data.sections {
		perf := domain.SectionPerformance{
			TestSectionID: section.ID,
			Title:         section.Title,
			Order:         section.Order,
		}
		sum := 0
		for _, attempt := range data.attempts {
			if attempt.TestSectionID != section.ID {
				continue
			}
			perf.TotalAttempts++
			if score, ok := scores[attempt.ID]; ok {
				perf.CompletedAttempts++
				sum += score.Percentage
			}
		}
		if perf.CompletedAttempts > 0 {
			perf.AverageScore = round2(float64(sum) / float64(perf.CompletedAttempts))
		}
		out = append(out, perf)
	}
	return out
}

// groupByParticipant groups attempts per participant, keeping first-seen participant order.
func groupByParticipant(attempts []domain.TestAttempt) ([]string, map[string][]domain.TestAttempt) {
	var order []string
	grouped := make(map[string][]domain.TestAttempt)
	for _, a := range attempts {
		if _, ok := grouped[a.ParticipantID]; !ok {
			order = append(order, a.ParticipantID)
		}
		grouped[a.ParticipantID] = append(grouped[a.ParticipantID], a)
	}
	return order, grouped
}

func (s *AnalyticsService) owns(ctx context.Context, caller domain.Caller, testID string) (bool, error) {
	test, ok, err := s.guard.ownedTest(ctx, caller, testID)
	if err != nil || !ok {
		return false, err
	}
	return !test.IsDeleted(), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
