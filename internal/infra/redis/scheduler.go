package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"evaly-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	backendLabel = "redis"
	jobsKey      = "scheduler:jobs"
)

// Scheduler keeps delayed jobs in Redis so they survive restarts and can be shared by several
// instances.
// Layout:
//
//	ZADD scheduler:jobs {runAtMillis} {jobID}            pending jobs
//	HSET scheduler:job:{jobID} payload {json} state {s}  job record
//
// Whoever removes a job id from the sorted set owns it: a poller that wins the ZREM fires the job,
// a Cancel that wins it cancels the job. Finished records expire after the retention period.
type Scheduler struct {
	client    *redis.Client
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	poll      time.Duration
	retention time.Duration
	batch     int64
}

type SchedulerOption func(*Scheduler)

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

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(client *redis.Client, log *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		client:    client,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
		poll:      250 * time.Millisecond,
		retention: 24 * time.Hour,
		batch:     100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) RunAt(ctx context.Context, at time.Time, job domain.Job) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	id := s.newID()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.jobKey(id), "payload", payload, "state", string(domain.JobPending))
		pipe.ZAdd(ctx, jobsKey, redis.Z{Score: float64(at.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("schedule job: %w", err)
	}
	metrics.JobsScheduled.WithLabelValues(backendLabel, string(job.Kind)).Inc()
	return id, nil
}

func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	removed, err := s.client.ZRem(ctx, jobsKey, jobID).Result()
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if removed == 1 {
		metrics.JobsCanceled.WithLabelValues(backendLabel).Inc()
		return s.finish(ctx, jobID, domain.JobCanceled)
	}

	metrics.CancelFailures.WithLabelValues(backendLabel).Inc()
	exists, err := s.client.Exists(ctx, s.jobKey(jobID)).Result()
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if exists == 0 {
		return domain.ErrJobNotFound
	}
	return domain.ErrJobAlreadyFired
}

func (s *Scheduler) State(ctx context.Context, jobID string) (domain.JobState, error) {
	state, err := s.client.HGet(ctx, s.jobKey(jobID), "state").Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("job state: %w", err)
	}
	return domain.JobState(state), nil
}

// RunDue claims and executes jobs whose run-at time is not after now, oldest first.
// Jobs claimed by another instance are skipped.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time, handle app.JobHandler) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, jobsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: s.batch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("load due jobs: %w", err)
	}

	ran := 0
	for _, id := range ids {
		claimed, err := s.client.ZRem(ctx, jobsKey, id).Result()
		if err != nil {
			return ran, fmt.Errorf("claim job: %w", err)
		}
		if claimed == 0 {
			continue
		}
		if err := s.client.HSet(ctx, s.jobKey(id), "state", string(domain.JobRunning)).Err(); err != nil {
			return ran, fmt.Errorf("mark job running: %w", err)
		}
		s.fire(ctx, id, handle)
		ran++
	}
	return ran, nil
}

func (s *Scheduler) fire(ctx context.Context, id string, handle app.JobHandler) {
	log := s.log.With(zap.String("jobId", id))
	raw, err := s.client.HGet(ctx, s.jobKey(id), "payload").Bytes()
	if err != nil {
		log.Error("load job payload", zap.Error(err))
		_ = s.finish(ctx, id, domain.JobFailed)
		return
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error("decode job payload", zap.Error(err))
		_ = s.finish(ctx, id, domain.JobFailed)
		return
	}

	state := domain.JobCompleted
	if err := handle(ctx, job); err != nil {
		state = domain.JobFailed
		log.Error("scheduled job failed", zap.String("kind", string(job.Kind)), zap.Error(err))
	}
	if err := s.finish(ctx, id, state); err != nil {
		log.Warn("record job state", zap.Error(err))
	}
	metrics.JobsFired.WithLabelValues(backendLabel, string(job.Kind), string(state)).Inc()
}

func (s *Scheduler) finish(ctx context.Context, id string, state domain.JobState) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.jobKey(id), "state", string(state))
		pipe.Expire(ctx, s.jobKey(id), s.retention)
		return nil
	})
	return err
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
			if _, err := s.RunDue(ctx, s.now(), handle); err != nil && ctx.Err() == nil {
				s.log.Warn("scheduler poll failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) jobKey(id string) string {
	return "scheduler:job:" + id
}
