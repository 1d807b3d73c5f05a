package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"evaly-service/internal/infra/postgres"
	pgmigrations "evaly-service/internal/infra/postgres/migrations"
	infraredis "evaly-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap/zaptest"
)

func TestTestLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	log := zaptest.NewLogger(t)
	repos := postgres.NewRepositories(pool)
	repos.Presence = infraredis.NewPresenceStore(redisClient, 5*time.Minute)
	repos.Questions = infraredis.NewQuestionCache(redisClient, repos.Questions, 5*time.Minute)
	scheduler := infraredis.NewScheduler(redisClient, log)
	svc := app.NewServices(repos, scheduler, log)

	if err := repos.Organizers.Insert(ctx, domain.Organizer{
		ID: "organizer-1", UserID: "user-org", OrganizationID: "acme", Name: "Ada", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert organizer: %v", err)
	}
	organizer, err := svc.Callers.Resolve(ctx, "user-org")
	if err != nil || !organizer.IsOrganizer() {
		t.Fatalf("resolve organizer: %+v, %v", organizer, err)
	}
	participant, err := svc.Callers.Resolve(ctx, "user-p1")
	if err != nil {
		t.Fatalf("resolve participant: %v", err)
	}

	test, err := svc.Tests.CreateTest(ctx, organizer, domain.TestTypeSelfPaced)
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	if _, err := svc.Sections.Create(ctx, organizer, test.ID); err != nil {
		t.Fatalf("create section: %v", err)
	}
	sections, err := svc.Sections.GetByTestID(ctx, organizer, test.ID)
	if err != nil || len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d, %v", len(sections), err)
	}
	points := 2
	question, err := svc.Questions.Create(ctx, organizer, app.QuestionInput{
		ReferenceID:          sections[0].ID,
		Type:                 domain.QuestionMultipleChoice,
		Question:             "Which are prime?",
		Options:              []domain.Option{{ID: "a", Text: "2", IsCorrect: true}, {ID: "b", Text: "4"}, {ID: "c", Text: "5", IsCorrect: true}},
		AllowMultipleAnswers: true,
		PointValue:           &points,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	start := time.Now().Add(time.Second)
	published, err := svc.Tests.PublishTest(ctx, organizer, test.ID, app.PublishInput{
		StartOption: app.StartSchedule, ScheduledStartAt: &start,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.IsPublished || published.ActivationJobID == "" {
		t.Fatalf("expected pending activation, got %+v", published)
	}
	fired, err := scheduler.RunDue(ctx, start.Add(time.Second), svc.HandleJob)
	if err != nil || fired != 1 {
		t.Fatalf("expected activation to fire, got %d, %v", fired, err)
	}
	active, err := repos.Tests.Get(ctx, test.ID)
	if err != nil || !active.IsPublished {
		t.Fatalf("expected active test, got %+v, %v", active, err)
	}

	if err := svc.Presence.Heartbeat(ctx, test.ID, participant.UserID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	present, err := svc.Presence.ListPresence(ctx, test.ID)
	if err != nil || len(present) != 1 {
		t.Fatalf("expected one present participant, got %+v, %v", present, err)
	}

	attempt, err := svc.Attempts.StartAttempt(ctx, participant, sections[0].ID)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if _, err := svc.Attempts.SubmitAnswer(ctx, participant, attempt.ID, app.AnswerInput{
		QuestionID: question.ID, AnswerOptions: []string{"c", "a"},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Attempts.FinishAttempt(ctx, participant, attempt.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}

	score, err := svc.Scores.AggregateParticipantScore(ctx, test.ID, participant.UserID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.TotalScore != 2 || score.MaxPossibleScore != 2 || score.IsCompleted {
		t.Fatalf("unexpected score: %+v", score)
	}
	answers, err := repos.Answers.FindActiveByAttemptID(ctx, attempt.ID)
	if err != nil || len(answers) != 1 || answers[0].IsCorrect == nil || !*answers[0].IsCorrect {
		t.Fatalf("expected stored correct answer, got %+v, %v", answers, err)
	}

	progress, err := svc.Analytics.GetProgress(ctx, organizer, test.ID)
	if err != nil || progress == nil {
		t.Fatalf("progress: %+v, %v", progress, err)
	}
	if progress.TotalParticipants != 1 || progress.WorkingInProgress != 1 {
		t.Fatalf("unexpected progress: %+v", progress)
	}

	if err := svc.Sections.Remove(ctx, organizer, sections[0].ID); err != nil {
		t.Fatalf("remove section: %v", err)
	}
	remaining, err := svc.Sections.GetByTestID(ctx, organizer, test.ID)
	if err != nil || len(remaining) != 1 || remaining[0].Order != 1 {
		t.Fatalf("expected the second section renumbered to 1, got %+v, %v", remaining, err)
	}

	stopped, err := svc.Tests.StopTest(ctx, organizer, test.ID)
	if err != nil || stopped.FinishedAt == nil {
		t.Fatalf("stop: %+v, %v", stopped, err)
	}
	if _, err := svc.Attempts.StartAttempt(ctx, participant, remaining[0].ID); !errors.Is(err, domain.ErrTestFinished) {
		t.Fatalf("expected ErrTestFinished, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "evaly", "POSTGRES_PASSWORD": "evalypass", "POSTGRES_DB": "evaly"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://evaly:evalypass@%s:%s/evaly?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// migrateDB runs the migrations twice; the second run must be a no-op.
func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("migrate again: %v", err)
	}
	if !group.IsZero() {
		t.Fatalf("expected no pending migrations, got group %s", group)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
