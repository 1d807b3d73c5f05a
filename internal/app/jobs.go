package app

import (
	"context"
	"fmt"

	"evaly-service/internal/domain"
)

// HandleJob dispatches a fired scheduler job to its target mutation. Targets are idempotent,
// so a job delivered twice leaves the same state as one delivered once.
func (s *Services) HandleJob(ctx context.Context, job domain.Job) error {
	switch job.Kind {
	case domain.JobActivateTest:
		return s.Tests.ActivateTest(ctx, job.TestID)
	case domain.JobFinishTest:
		return s.Tests.FinishTest(ctx, job.TestID)
	case domain.JobMarkAsGone:
		return s.Presence.MarkAsGone(ctx, job.TestID, job.ParticipantID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
