package cli

import (
	"context"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/config"
	"evaly-service/internal/infra/memory"
	"evaly-service/internal/infra/postgres"
	redisinfra "evaly-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// jobRunner is the polling side of a scheduler.
type jobRunner interface {
	Run(ctx context.Context, handle app.JobHandler)
}

type backend struct {
	repos     app.Repositories
	scheduler app.Scheduler
	runner    jobRunner
	close     func()
}

// openBackend picks storage by configuration: Postgres when postgres.url is set, Redis for
// presence, the question cache and the scheduler when redis.addr is set, memory otherwise.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{repos: memory.NewRepositories(), close: func() {}}
	var closers []func()

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		presence := b.repos.Presence
		b.repos = postgres.NewRepositories(pool)
		b.repos.Presence = presence
		log.Info("using postgres storage")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		b.repos.Presence = redisinfra.NewPresenceStore(redisClient, redisTTL)
		b.repos.Questions = redisinfra.NewQuestionCache(redisClient, b.repos.Questions, redisTTL)
		log.Info("using redis presence and question cache", zap.String("addr", cfg.Redis.Addr))
	}

	poll := config.TTLDuration(cfg.Scheduler.PollInterval, 250*time.Millisecond)
	retention := config.TTLDuration(cfg.Scheduler.Retention, 24*time.Hour)
	if cfg.SchedulerBackend() == "redis" && redisClient != nil {
		s := redisinfra.NewScheduler(redisClient, log.Named("scheduler"), redisinfra.WithPollInterval(poll), redisinfra.WithRetention(retention))
		b.scheduler, b.runner = s, s
	} else {
		s := memory.NewScheduler(log.Named("scheduler"), memory.WithPollInterval(poll), memory.WithRetention(retention))
		b.scheduler, b.runner = s, s
	}
	log.Info("scheduler ready", zap.String("backend", cfg.SchedulerBackend()))

	b.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return b, nil
}
