package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"evaly-service/internal/domain"
	"go.uber.org/zap"
)

// PresenceService tracks which participants are currently connected to a test.
// A heartbeat arms a watchdog job; a participant that stops heartbeating is marked gone when
// the watchdog fires. Presence is only tracked for tests that exist and are not deleted.
type PresenceService struct {
	repo            PresenceRepository
	tests           TestRepository
	scheduler       Scheduler
	log             *zap.Logger
	now             func() time.Time
	markAsGoneAfter time.Duration
	limit           int
}

// UpdatePresence marks the participant present and stores their client data.
func (s *PresenceService) UpdatePresence(ctx context.Context, testID, participantID string, data json.RawMessage) (domain.TestPresence, error) {
	if testID == "" || participantID == "" {
		return domain.TestPresence{}, fmt.Errorf("%w: test and participant are required", domain.ErrInvalidArgument)
	}
	if err := s.liveTest(ctx, testID); err != nil {
		return domain.TestPresence{}, err
	}
	now := s.now()
	presence, err := s.repo.Get(ctx, testID, participantID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		presence = domain.TestPresence{TestID: testID, ParticipantID: participantID, Created: now}
	case err != nil:
		return domain.TestPresence{}, err
	}
	presence.Data = data
	presence.Present = true
	presence.LatestJoinedAt = now
	if err := s.repo.Put(ctx, presence); err != nil {
		return domain.TestPresence{}, fmt.Errorf("store presence: %w", err)
	}
	return presence, nil
}

// Heartbeat re-arms the participant's watchdog, cancelling the previous one if it is still
// pending. A participant that was marked gone becomes present again.
func (s *PresenceService) Heartbeat(ctx context.Context, testID, participantID string) error {
	if testID == "" || participantID == "" {
		return fmt.Errorf("%w: test and participant are required", domain.ErrInvalidArgument)
	}
	if err := s.liveTest(ctx, testID); err != nil {
		return err
	}
	now := s.now()
	presence, err := s.repo.Get(ctx, testID, participantID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		presence = domain.TestPresence{
			TestID: testID, ParticipantID: participantID,
			Created: now, LatestJoinedAt: now,
		}
	case err != nil:
		return err
	}

	if presence.MarkAsGoneJobID != "" {
		s.cancelWatchdog(ctx, presence.MarkAsGoneJobID)
	}
	jobID, err := s.scheduler.RunAt(ctx, now.Add(s.markAsGoneAfter), domain.Job{
		Kind:          domain.JobMarkAsGone,
		TestID:        testID,
		ParticipantID: participantID,
	})
	if err != nil {
		return fmt.Errorf("schedule watchdog: %w", err)
	}
	presence.MarkAsGoneJobID = jobID
	if !presence.Present {
		presence.Present = true
		presence.LatestJoinedAt = now
	}
	if err := s.repo.Put(ctx, presence); err != nil {
		return fmt.Errorf("store presence: %w", err)
	}
	return nil
}

// cancelWatchdog only cancels jobs that are still pending; fired ones need no cleanup.
func (s *PresenceService) cancelWatchdog(ctx context.Context, jobID string) {
	state, err := s.scheduler.State(ctx, jobID)
	if err != nil || state != domain.JobPending {
		return
	}
	if err := s.scheduler.Cancel(ctx, jobID); err != nil {
		s.log.Debug("watchdog cancel raced with firing", zap.String("jobId", jobID), zap.Error(err))
	}
}

// MarkAsGone is the watchdog target.
func (s *PresenceService) MarkAsGone(ctx context.Context, testID, participantID string) error {
	presence, err := s.repo.Get(ctx, testID, participantID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !presence.Present {
		return nil
	}
	presence.Present = false
	presence.MarkAsGoneJobID = ""
	return s.repo.Put(ctx, presence)
}

// ListPresence returns currently present participants in index order.
func (s *PresenceService) ListPresence(ctx context.Context, testID string) ([]domain.TestPresence, error) {
	if err := s.liveTest(ctx, testID); err != nil {
		return nil, err
	}
	return s.repo.ListPresent(ctx, testID, s.limit)
}

func (s *PresenceService) liveTest(ctx context.Context, testID string) error {
	test, err := s.tests.Get(ctx, testID)
	if err != nil {
		return err
	}
	if test.IsDeleted() {
		return domain.ErrNotFound
	}
	return nil
}
