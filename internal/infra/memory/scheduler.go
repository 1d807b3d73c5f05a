package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"evaly-service/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const backendLabel = "memory"

// Scheduler is a process-local job scheduler. Jobs live in memory and are lost on restart;
// use the redis scheduler when more than one instance runs. Fired or canceled records are
// evicted once they are older than the retention period.
type Scheduler struct {
	mu        sync.Mutex
	jobs      map[string]*domain.ScheduledJob
	doneAt    map[string]time.Time
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	poll      time.Duration
	retention time.Duration
}

type SchedulerOption func(*Scheduler)

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithRetention sets how long fired or canceled job records stay readable through State.
func WithRetention(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.retention = d
		}
	}
}

func NewScheduler(log *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		jobs:      make(map[string]*domain.ScheduledJob),
		doneAt:    make(map[string]time.Time),
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
		poll:      250 * time.Millisecond,
		retention: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) RunAt(_ context.Context, at time.Time, job domain.Job) (string, error) {
	id := s.newID()
	s.mu.Lock()
	s.jobs[id] = &domain.ScheduledJob{ID: id, RunAt: at, State: domain.JobPending, Job: job}
	s.mu.Unlock()
	metrics.JobsScheduled.WithLabelValues(backendLabel, string(job.Kind)).Inc()
	return id, nil
}

func (s *Scheduler) Cancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		metrics.CancelFailures.WithLabelValues(backendLabel).Inc()
		return domain.ErrJobNotFound
	}
	if job.State != domain.JobPending {
		metrics.CancelFailures.WithLabelValues(backendLabel).Inc()
		return domain.ErrJobAlreadyFired
	}
	job.State = domain.JobCanceled
	s.doneAt[jobID] = s.now()
	metrics.JobsCanceled.WithLabelValues(backendLabel).Inc()
	return nil
}

func (s *Scheduler) State(_ context.Context, jobID string) (domain.JobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return "", domain.ErrJobNotFound
	}
	return job.State, nil
}

// RunDue executes every pending job whose time has come, oldest first, and returns how many ran.
// A failing job is marked failed and does not stop the others.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time, handle app.JobHandler) int {
	s.mu.Lock()
	s.evictLocked(now)
	var due []domain.ScheduledJob
	for _, job := range s.jobs {
		if job.State == domain.JobPending && !job.RunAt.After(now) {
			job.State = domain.JobRunning
			due = append(due, *job)
		}
	}
	s.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })

	for _, job := range due {
		state := domain.JobCompleted
		if err := handle(ctx, job.Job); err != nil {
			state = domain.JobFailed
			s.log.Error("scheduled job failed",
				zap.String("jobId", job.ID),
				zap.String("kind", string(job.Job.Kind)),
				zap.Error(err))
		}
		s.mu.Lock()
		s.jobs[job.ID].State = state
		s.doneAt[job.ID] = now
		s.mu.Unlock()
		metrics.JobsFired.WithLabelValues(backendLabel, string(job.Job.Kind), string(state)).Inc()
	}
	return len(due)
}

func (s *Scheduler) evictLocked(now time.Time) {
	cutoff := now.Add(-s.retention)
	for id, at := range s.doneAt {
		if at.Before(cutoff) {
			delete(s.jobs, id)
			delete(s.doneAt, id)
		}
	}
}

// Run polls for due jobs until ctx is done.
func (s *Scheduler) Run(ctx context.Context, handle app.JobHandler) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunDue(ctx, s.now(), handle)
		}
	}
}
