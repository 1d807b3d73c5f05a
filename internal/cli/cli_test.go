package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"evaly-service/internal/config"
	"evaly-service/internal/infra/memory"
	redisinfra "evaly-service/internal/infra/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := writeConfig(t, "auth:\n  jwtSecret: s3cret\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "user-42", "--config", path, "--ttl", "5m"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token: %v", err)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("expected subject user-42, got %q", claims.Subject)
	}
}

func TestSeedOrganizersIsIdempotent(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
organizers:
  - userId: user-1
    organizationId: acme
    name: Ada
  - userId: ""
    organizationId: skipped
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	repos := memory.NewRepositories()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := seedOrganizers(ctx, cfg, repos.Organizers, zap.NewNop()); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	organizer, err := repos.Organizers.FindByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("find organizer: %v", err)
	}
	if organizer.OrganizationID != "acme" || organizer.Name != "Ada" {
		t.Fatalf("unexpected organizer: %+v", organizer)
	}
	first := organizer.ID
	if err := seedOrganizers(ctx, cfg, repos.Organizers, zap.NewNop()); err != nil {
		t.Fatalf("seed again: %v", err)
	}
	again, _ := repos.Organizers.FindByUserID(ctx, "user-1")
	if again.ID != first {
		t.Fatalf("seeding twice must keep the original record")
	}
}

func TestOpenBackendSelectsScheduler(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	ctx := context.Background()

	memCfg, err := config.Load(writeConfig(t, "scheduler:\n  pollInterval: 50ms\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	b, err := openBackend(ctx, memCfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open memory backend: %v", err)
	}
	defer b.close()
	if _, ok := b.scheduler.(*memory.Scheduler); !ok {
		t.Fatalf("expected memory scheduler, got %T", b.scheduler)
	}

	mr := miniredis.RunT(t)
	redisCfg, err := config.Load(writeConfig(t, "redis:\n  addr: "+mr.Addr()+"\n  ttl: 1m\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	rb, err := openBackend(ctx, redisCfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open redis backend: %v", err)
	}
	defer rb.close()
	if _, ok := rb.scheduler.(*redisinfra.Scheduler); !ok {
		t.Fatalf("expected redis scheduler, got %T", rb.scheduler)
	}
	if _, ok := rb.repos.Presence.(*redisinfra.PresenceStore); !ok {
		t.Fatalf("expected redis presence store, got %T", rb.repos.Presence)
	}
	if _, ok := rb.repos.Questions.(*redisinfra.QuestionCache); !ok {
		t.Fatalf("expected question cache, got %T", rb.repos.Questions)
	}
}
