package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evaly-service/internal/domain"
	"go.uber.org/zap"
)

// StartOption selects how PublishTest opens a test.
type StartOption string

const (
	StartNow      StartOption = "now"
	StartSchedule StartOption = "schedule"
)

// PublishInput carries the publish dialog choices.
type PublishInput struct {
	StartOption      StartOption
	ScheduledStartAt *time.Time
	ScheduledEndAt   *time.Time
}

// TestPatch updates editable test settings; nil fields are left untouched.
type TestPatch struct {
	Title                 *string
	Description           *string
	Access                *domain.TestAccess
	ShowResultImmediately *bool
}

// TestService implements the test lifecycle: drafts, publishing, scheduling and duplication.
type TestService struct {
	repos     Repositories
	guard     *guard
	scheduler Scheduler
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
}

// CreateTest creates an unpublished test with one empty section.
func (s *TestService) CreateTest(ctx context.Context, caller domain.Caller, testType domain.TestType) (domain.Test, error) {
	if !caller.IsOrganizer() {
		return domain.Test{}, domain.ErrUnauthorized
	}
	if !testType.Valid() {
		return domain.Test{}, fmt.Errorf("%w: unknown test type %q", domain.ErrInvalidArgument, testType)
	}

	now := s.now()
	test := domain.Test{
		ID:                   s.newID(),
		OrganizationID:       caller.OrganizationID,
		CreatedByOrganizerID: caller.OrganizerID,
		Type:                 testType,
		Access:               domain.AccessPublic,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repos.Tests.Insert(ctx, test); err != nil {
		return domain.Test{}, fmt.Errorf("insert test: %w", err)
	}
	section := domain.TestSection{
		ID:        s.newID(),
		TestID:    test.ID,
		Order:     1,
		CreatedAt: now,
	}
	if err := s.repos.Sections.Insert(ctx, section); err != nil {
		return domain.Test{}, fmt.Errorf("insert default section: %w", err)
	}
	return test, nil
}

// UpdateTest edits title, description, access and result visibility.
func (s *TestService) UpdateTest(ctx context.Context, caller domain.Caller, testID string, patch TestPatch) (domain.Test, error) {
	if patch.Access != nil && !patch.Access.Valid() {
		return domain.Test{}, fmt.Errorf("%w: unknown access %q", domain.ErrInvalidArgument, *patch.Access)
	}
	test, err := s.guard.requireLiveTest(ctx, caller, testID)
	if err != nil {
		return domain.Test{}, err
	}
	if patch.Title != nil {
		test.Title = *patch.Title
	}
	if patch.Description != nil {
		test.Description = *patch.Description
	}
	if patch.Access != nil {
		test.Access = *patch.Access
	}
	if patch.ShowResultImmediately != nil {
		test.ShowResultImmediately = *patch.ShowResultImmediately
	}
	return s.save(ctx, test)
}

// PublishTest opens the test now or schedules its activation, and (re)schedules its finish.
func (s *TestService) PublishTest(ctx context.Context, caller domain.Caller, testID string, in PublishInput) (domain.Test, error) {
	switch in.StartOption {
	case StartNow:
	case StartSchedule:
		if in.ScheduledStartAt == nil {
			return domain.Test{}, domain.ErrInvalidStartOption
		}
	default:
		return domain.Test{}, domain.ErrInvalidStartOption
	}

	test, err := s.guard.requireLiveTest(ctx, caller, testID)
	if err != nil {
		return domain.Test{}, err
	}
	wasActive := test.IsActive()

	s.cancelJob(ctx, test.ID, test.ActivationJobID)
	s.cancelJob(ctx, test.ID, test.FinishJobID)
	test.ActivationJobID = ""
	test.FinishJobID = ""

	now := s.now()
	var scheduled []string
	switch in.StartOption {
	case StartNow:
		test.IsPublished = true
		test.ScheduledStartAt = &now
	case StartSchedule:
		start := *in.ScheduledStartAt
		test.ScheduledStartAt = &start
		// An already running test is not re-activated for a start time that has passed.
		if start.After(now) || !wasActive {
			jobID, err := s.scheduler.RunAt(ctx, start, domain.Job{Kind: domain.JobActivateTest, TestID: test.ID})
			if err != nil {
				return domain.Test{}, fmt.Errorf("schedule activation: %w", err)
			}
			test.ActivationJobID = jobID
			scheduled = append(scheduled, jobID)
		}
	}

	test.ScheduledEndAt = in.ScheduledEndAt
	if in.ScheduledEndAt != nil && in.ScheduledEndAt.After(now) {
		jobID, err := s.scheduler.RunAt(ctx, *in.ScheduledEndAt, domain.Job{Kind: domain.JobFinishTest, TestID: test.ID})
		if err != nil {
			s.rollbackJobs(ctx, test.ID, scheduled)
			return domain.Test{}, fmt.Errorf("schedule finish: %w", err)
		}
		test.FinishJobID = jobID
		scheduled = append(scheduled, jobID)
	}

	saved, err := s.save(ctx, test)
	if err != nil {
		s.rollbackJobs(ctx, test.ID, scheduled)
		return domain.Test{}, err
	}
	s.log.Info("test published",
		zap.String("testId", test.ID),
		zap.String("startOption", string(in.StartOption)),
		zap.Bool("isPublished", saved.IsPublished),
		zap.String("activationJobId", saved.ActivationJobID),
		zap.String("finishJobId", saved.FinishJobID))
	return saved, nil
}

// UpdateTestSchedule replaces the finish job of a test.
func (s *TestService) UpdateTestSchedule(ctx context.Context, caller domain.Caller, testID string, scheduledEndAt *time.Time) (domain.Test, error) {
	test, err := s.guard.requireLiveTest(ctx, caller, testID)
	if err != nil {
		return domain.Test{}, err
	}

	s.cancelJob(ctx, test.ID, test.FinishJobID)
	test.FinishJobID = ""
	test.ScheduledEndAt = scheduledEndAt

	var scheduled []string
	if scheduledEndAt != nil && scheduledEndAt.After(s.now()) {
		jobID, err := s.scheduler.RunAt(ctx, *scheduledEndAt, domain.Job{Kind: domain.JobFinishTest, TestID: test.ID})
		if err != nil {
			return domain.Test{}, fmt.Errorf("schedule finish: %w", err)
		}
		test.FinishJobID = jobID
		scheduled = append(scheduled, jobID)
	}

	saved, err := s.save(ctx, test)
	if err != nil {
		s.rollbackJobs(ctx, test.ID, scheduled)
		return domain.Test{}, err
	}
	return saved, nil
}

// StopTest ends a test immediately.
func (s *TestService) StopTest(ctx context.Context, caller domain.Caller, testID string) (domain.Test, error) {
	test, err := s.guard.requireLiveTest(ctx, caller, testID)
	if err != nil {
		return domain.Test{}, err
	}
	if test.FinishedAt != nil {
		return domain.Test{}, domain.ErrAlreadyFinished
	}

	s.cancelJob(ctx, test.ID, test.ActivationJobID)
	s.cancelJob(ctx, test.ID, test.FinishJobID)
	now := s.now()
	test.FinishedAt = &now
	test.ActivationJobID = ""
	test.FinishJobID = ""
	return s.save(ctx, test)
}

// DeleteTest soft-deletes a test. Sections, questions and attempts are left in place.
func (s *TestService) DeleteTest(ctx context.Context, caller domain.Caller, testID string) error {
	test, ok, err := s.guard.ownedTest(ctx, caller, testID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	if test.IsDeleted() {
		return domain.ErrAlreadyDeleted
	}

	s.cancelJob(ctx, test.ID, test.ActivationJobID)
	s.cancelJob(ctx, test.ID, test.FinishJobID)
	now := s.now()
	test.DeletedAt = &now
	test.ActivationJobID = ""
	test.FinishJobID = ""
	_, err = s.save(ctx, test)
	return err
}

// DuplicateTest deep-copies a test with its sections and questions into a fresh draft.
// Reopening a finished test goes through here as well.
func (s *TestService) DuplicateTest(ctx context.Context, caller domain.Caller, testID string) (domain.Test, error) {
	source, err := s.guard.requireLiveTest(ctx, caller, testID)
	if err != nil {
		return domain.Test{}, err
	}
	sections, err := s.repos.Sections.FindActiveByTestID(ctx, source.ID)
	if err != nil {
		return domain.Test{}, fmt.Errorf("load sections: %w", err)
	}

	now := s.now()
	copied := domain.Test{
		ID:                    s.newID(),
		OrganizationID:        source.OrganizationID,
		CreatedByOrganizerID:  caller.OrganizerID,
		Title:                 source.Title + " (Copy)",
		Description:           source.Description,
		Type:                  source.Type,
		Access:                source.Access,
		ShowResultImmediately: source.ShowResultImmediately,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repos.Tests.Insert(ctx, copied); err != nil {
		return domain.Test{}, fmt.Errorf("insert test copy: %w", err)
	}

	for _, section := range sections {
		sectionCopy := domain.TestSection{
			ID:          s.newID(),
			TestID:      copied.ID,
			Order:       section.Order,
			Title:       section.Title,
			Description: section.Description,
			Duration:    copyInt(section.Duration),
			CreatedAt:   now,
		}
		if err := s.repos.Sections.Insert(ctx, sectionCopy); err != nil {
			return domain.Test{}, fmt.Errorf("insert section copy: %w", err)
		}

		questions, err := s.repos.Questions.FindActiveByReferenceID(ctx, section.ID)
		if err != nil {
			return domain.Test{}, fmt.Errorf("load questions: %w", err)
		}
		for _, q := range questions {
			qc := q.Clone()
			qc.ID = s.newID()
			qc.ReferenceID = sectionCopy.ID
			qc.CreatedAt = now
			if err := s.repos.Questions.Insert(ctx, qc); err != nil {
				return domain.Test{}, fmt.Errorf("insert question copy: %w", err)
			}
		}
	}

	s.log.Info("test duplicated", zap.String("sourceTestId", source.ID), zap.String("testId", copied.ID))
	return copied, nil
}

// GetTests lists the caller organization's non-deleted tests, newest first.
func (s *TestService) GetTests(ctx context.Context, caller domain.Caller) ([]domain.Test, error) {
	if !caller.IsOrganizer() {
		return nil, nil
	}
	return s.repos.Tests.FindActiveByOrganization(ctx, caller.OrganizationID)
}

// GetTestByID returns nil when the caller does not own the test. Soft-deleted tests are
// returned with DeletedAt set.
func (s *TestService) GetTestByID(ctx context.Context, caller domain.Caller, testID string) (*domain.Test, error) {
	test, ok, err := s.guard.ownedTest(ctx, caller, testID)
	if err != nil || !ok {
		return nil, err
	}
	return &test, nil
}

// ActivateTest is the target of activation jobs.
func (s *TestService) ActivateTest(ctx context.Context, testID string) error {
	test, err := s.repos.Tests.Get(ctx, testID)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("activation fired for unknown test", zap.String("testId", testID))
		return nil
	}
	if err != nil {
		return err
	}
	if test.IsDeleted() {
		s.log.Warn("activation fired for deleted test", zap.String("testId", testID))
		return nil
	}
	if test.IsPublished && test.ActivationJobID == "" {
		return nil
	}
	test.IsPublished = true
	test.ActivationJobID = ""
	_, err = s.save(ctx, test)
	return err
}

// FinishTest is the target of finish jobs. The first finish time wins.
func (s *TestService) FinishTest(ctx context.Context, testID string) error {
	test, err := s.repos.Tests.Get(ctx, testID)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("finish fired for unknown test", zap.String("testId", testID))
		return nil
	}
	if err != nil {
		return err
	}
	if test.IsDeleted() {
		s.log.Warn("finish fired for deleted test", zap.String("testId", testID))
		return nil
	}
	if test.FinishedAt != nil && test.FinishJobID == "" {
		return nil
	}
	if test.FinishedAt == nil {
		now := s.now()
		test.FinishedAt = &now
	}
	test.FinishJobID = ""
	_, err = s.save(ctx, test)
	return err
}

func (s *TestService) save(ctx context.Context, test domain.Test) (domain.Test, error) {
	test.UpdatedAt = s.now()
	if err := s.repos.Tests.Update(ctx, test); err != nil {
		return domain.Test{}, fmt.Errorf("update test: %w", err)
	}
	return test, nil
}

// cancelJob cancels a scheduled job. Failures usually mean the job already fired,
// which its idempotent target tolerates, so they are only logged.
func (s *TestService) cancelJob(ctx context.Context, testID, jobID string) {
	if jobID == "" {
		return
	}
	if err := s.scheduler.Cancel(ctx, jobID); err != nil {
		s.log.Warn("failed to cancel scheduled job",
			zap.String("testId", testID),
			zap.String("jobId", jobID),
			zap.Error(err))
	}
}

func (s *TestService) rollbackJobs(ctx context.Context, testID string, jobIDs []string) {
	for _, id := range jobIDs {
		s.cancelJob(ctx, testID, id)
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
