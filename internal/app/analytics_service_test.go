package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"evaly-service/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressCountsCompleteParticipants(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()
	_, err := f.svc.Sections.Create(f.ctx, f.organizer, test.ID)
	require.NoError(t, err)
	sections := f.sections(test.ID)
	f.publishNow(test.ID)

	f.takeSection(f.participant("p1"), sections[0].ID, nil, time.Minute)
	f.takeSection(f.participant("p1"), sections[1].ID, nil, 2*time.Minute)
	f.takeSection(f.participant("p2"), sections[0].ID, nil, time.Minute)

	progress, err := f.svc.Analytics.GetProgress(f.ctx, f.organizer, test.ID)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, 2, progress.TotalParticipants)
	assert.Equal(t, 1, progress.Submissions)
	assert.Equal(t, 1, progress.WorkingInProgress)
	assert.Equal(t, 50, progress.CompletionRate)
	assert.Equal(t, 180.0, progress.AverageTime)

	foreign, err := f.svc.Analytics.GetProgress(f.ctx, f.outsider, test.ID)
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

// analyticsFixture has four participants answering two questions of one section:
// p1 gets both right, p2 and p3 one each, p4 none.
func analyticsFixture(t *testing.T) (*fixture, string, []string) {
	f := newFixture(t)
	test := f.createTest()
	section := f.sections(test.ID)[0]
	easy := f.addChoiceQuestion(section.ID, nil, opt("a", true), opt("b", false))
	hard := f.addChoiceQuestion(section.ID, nil, opt("c", true), opt("d", false))
	f.publishNow(test.ID)

	answers := []map[string][]string{
		{easy.ID: {"a"}, hard.ID: {"c"}},
		{easy.ID: {"a"}, hard.ID: {"d"}},
		{easy.ID: {"a"}, hard.ID: {"d"}},
		{easy.ID: {"b"}, hard.ID: {"d"}},
	}
	for i, a := range answers {
		f.takeSection(f.participant(participantName(i)), section.ID, a, time.Minute)
	}
	return f, test.ID, []string{easy.ID, hard.ID}
}

func participantName(i int) string { return string(rune('1'+i)) + "-participant" }

func TestComprehensiveAnalytics(t *testing.T) {
	f, testID, questionIDs := analyticsFixture(t)

	analytics, err := f.svc.Analytics.GetComprehensiveAnalytics(f.ctx, f.organizer, testID)
	require.NoError(t, err)
	require.NotNil(t, analytics)

	overview := analytics.Overview
	assert.Equal(t, 4, overview.TotalParticipants)
	assert.Equal(t, 4, overview.CompletedParticipants)
	assert.Equal(t, 100, overview.CompletionRate)
	assert.Equal(t, 50.0, overview.AverageScore)
	// Scores sorted are 0, 50, 50, 100; the upper-middle element is reported.
	assert.Equal(t, 50, overview.MedianScore)
	assert.Equal(t, 0, overview.LowestScore)
	assert.Equal(t, 100, overview.HighestScore)
	assert.Equal(t, 60.0, overview.AverageTime)

	counts := map[string]int{}
	for _, b := range analytics.ScoreDistribution {
		counts[b.Range] = b.Count
	}
	assert.Equal(t, map[string]int{"0-20": 1, "21-40": 0, "41-60": 2, "61-80": 0, "81-100": 1}, counts)

	require.Len(t, analytics.HardestQuestions, 2)
	assert.Equal(t, questionIDs[1], analytics.HardestQuestions[0].QuestionID)
	assert.Equal(t, 25.0, analytics.HardestQuestions[0].SuccessRate)
	assert.Equal(t, questionIDs[0], analytics.EasiestQuestions[0].QuestionID)
	assert.Equal(t, 75.0, analytics.EasiestQuestions[0].SuccessRate)

	require.Len(t, analytics.SectionPerformance, 1)
	assert.Equal(t, 4, analytics.SectionPerformance[0].CompletedAttempts)
	assert.Equal(t, 50.0, analytics.SectionPerformance[0].AverageScore)
}

func TestResultsSortedByPercentage(t *testing.T) {
	f, testID, _ := analyticsFixture(t)

	results, err := f.svc.Analytics.GetResultsWithScores(f.ctx, f.organizer, testID)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, participantName(0), results[0].ParticipantID)
	assert.Equal(t, participantName(3), results[3].ParticipantID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Percentage, results[i].Percentage)
	}
	assert.True(t, results[0].IsCompleted)
	assert.NotNil(t, results[0].CompletedAt)
	assert.Equal(t, 1, results[0].AttemptCount)
}

func TestSummaryCountsSelections(t *testing.T) {
	f, testID, questionIDs := analyticsFixture(t)
	section := f.sections(testID)[0]

	summary, err := f.svc.Analytics.GetSummary(f.ctx, f.organizer, testID, section.ID)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, questionIDs[0], summary[0].QuestionID)
	assert.Equal(t, 4, summary[0].TotalResponses)
	picked := map[string]int{}
	for _, o := range summary[0].Options {
		picked[o.ID] = o.Count
	}
	assert.Equal(t, map[string]int{"a": 3, "b": 1}, picked)

	foreign, err := f.svc.Analytics.GetSummary(f.ctx, f.outsider, testID, section.ID)
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

func TestAnalyticsEmptyTest(t *testing.T) {
	f := newFixture(t)
	test := f.createTest()

	analytics, err := f.svc.Analytics.GetComprehensiveAnalytics(f.ctx, f.organizer, test.ID)
	require.NoError(t, err)
	require.NotNil(t, analytics)
	assert.Zero(t, analytics.Overview.TotalParticipants)
	assert.Zero(t, analytics.Overview.AverageScore)
	assert.Len(t, analytics.ScoreDistribution, 5)
	assert.Empty(t, analytics.HardestQuestions)
}

// gatedSections holds FindActiveByTestID until released, honoring cancellation like a pgx query.
type gatedSections struct {
	app.SectionRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSections) FindActiveByTestID(ctx context.Context, testID string) ([]domain.TestSection, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
	}
	return g.SectionRepository.FindActiveByTestID(ctx, testID)
}

func TestAnalyticsSurvivesFirstCallerCancel(t *testing.T) {
	f, testID, _ := analyticsFixture(t)
	gate := &gatedSections{
		SectionRepository: f.repos.Sections,
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	repos := f.repos
	repos.Sections = gate
	svc := app.NewServices(repos, memory.NewScheduler(nil), nil, app.WithClock(f.clock.Now))

	type result struct {
		analytics *domain.Analytics
		err       error
	}
	first, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstDone := make(chan result, 1)
	go func() {
		a, err := svc.Analytics.GetComprehensiveAnalytics(first, f.organizer, testID)
		firstDone <- result{a, err}
	}()
	<-gate.entered

	secondDone := make(chan result, 1)
	go func() {
		a, err := svc.Analytics.GetComprehensiveAnalytics(context.Background(), f.organizer, testID)
		secondDone <- result{a, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case r := <-firstDone:
		assert.True(t, errors.Is(r.err, context.Canceled), "first caller: %v", r.err)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller kept waiting")
	}

	close(gate.release)
	select {
	case r := <-secondDone:
		require.NoError(t, r.err)
		require.NotNil(t, r.analytics)
		assert.Equal(t, 4, r.analytics.Overview.TotalParticipants)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never got a result")
	}
}
