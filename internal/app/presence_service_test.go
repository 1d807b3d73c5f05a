package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"evaly-service/internal/infra/memory"
)

func presentIDs(t *testing.T, f *fixture, testID string) []string {
	t.Helper()
	list, err := f.svc.Presence.ListPresence(f.ctx, testID)
	if err != nil {
		t.Fatalf("list presence: %v", err)
	}
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ParticipantID)
	}
	return ids
}

func TestHeartbeatWatchdogMarksGone(t *testing.T) {
	f := newFixture(t)
	testID := f.createTest().ID
	if _, err := f.svc.Presence.UpdatePresence(f.ctx, testID, "p1", json.RawMessage(`{"tab":"visible"}`)); err != nil {
		t.Fatalf("update presence: %v", err)
	}
	if err := f.svc.Presence.Heartbeat(f.ctx, testID, "p1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	f.advance(2 * time.Second)
	if ids := presentIDs(t, f, testID); len(ids) != 1 {
		t.Fatalf("expected participant present before the deadline, got %v", ids)
	}
	f.advance(app.MarkAsGoneAfter - 2*time.Second)
	if ids := presentIDs(t, f, testID); len(ids) != 0 {
		t.Fatalf("expected participant gone after the deadline, got %v", ids)
	}

	// Heartbeating again brings the participant back.
	if err := f.svc.Presence.Heartbeat(f.ctx, testID, "p1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if ids := presentIDs(t, f, testID); len(ids) != 1 {
		t.Fatalf("expected participant present again, got %v", ids)
	}
}

func TestHeartbeatReplacesWatchdog(t *testing.T) {
	f := newFixture(t)
	testID := f.createTest().ID
	if err := f.svc.Presence.Heartbeat(f.ctx, testID, "p1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	first, err := f.repos.Presence.Get(f.ctx, testID, "p1")
	if err != nil {
		t.Fatalf("get presence: %v", err)
	}

	for i := 0; i < 5; i++ {
		f.advance(2 * time.Second)
		if err := f.svc.Presence.Heartbeat(f.ctx, testID, "p1"); err != nil {
			t.Fatalf("heartbeat %d: %v", i, err)
		}
	}
	if ids := presentIDs(t, f, testID); len(ids) != 1 {
		t.Fatalf("steady heartbeats must keep the participant present, got %v", ids)
	}
	state, err := f.scheduler.State(f.ctx, first.MarkAsGoneJobID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != domain.JobCanceled {
		t.Fatalf("expected the first watchdog canceled, got %s", state)
	}
}

func TestMarkAsGoneIsIdempotent(t *testing.T) {
	f := newFixture(t)
	testID := f.createTest().ID
	if err := f.svc.Presence.Heartbeat(f.ctx, testID, "p1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := f.svc.Presence.MarkAsGone(f.ctx, testID, "p1"); err != nil {
		t.Fatalf("mark as gone: %v", err)
	}
	once, _ := f.repos.Presence.Get(f.ctx, testID, "p1")
	if err := f.svc.Presence.MarkAsGone(f.ctx, testID, "p1"); err != nil {
		t.Fatalf("mark as gone again: %v", err)
	}
	twice, _ := f.repos.Presence.Get(f.ctx, testID, "p1")
	if once.Present || twice.Present || !once.LatestJoinedAt.Equal(twice.LatestJoinedAt) {
		t.Fatalf("unexpected presence after repeated mark: %+v / %+v", once, twice)
	}
	if err := f.svc.Presence.MarkAsGone(f.ctx, testID, "nobody"); err != nil {
		t.Fatalf("mark unknown participant: %v", err)
	}
}

func TestPresenceRequiresIdentifiers(t *testing.T) {
	f := newFixture(t)
	testID := f.createTest().ID
	if _, err := f.svc.Presence.UpdatePresence(f.ctx, "", "p1", nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := f.svc.Presence.Heartbeat(f.ctx, testID, ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPresenceRejectsUnknownAndDeletedTests(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Presence.UpdatePresence(f.ctx, "no-such-test", "p1", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if err := f.svc.Presence.Heartbeat(f.ctx, "no-such-test", "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("heartbeat: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Presence.ListPresence(f.ctx, "no-such-test"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("list: expected ErrNotFound, got %v", err)
	}
	if n := f.scheduler.RunDue(f.ctx, f.clock.Now().Add(time.Hour), f.svc.HandleJob); n != 0 {
		t.Fatalf("rejected heartbeat must not arm a watchdog, %d jobs ran", n)
	}

	test := f.createTest()
	if err := f.svc.Tests.DeleteTest(f.ctx, f.organizer, test.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.Presence.Heartbeat(f.ctx, test.ID, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("heartbeat on deleted test: expected ErrNotFound, got %v", err)
	}
}

func TestListPresenceLimit(t *testing.T) {
	repos := memory.NewRepositories()
	svc := app.NewServices(repos, memory.NewScheduler(nil), nil, app.WithPresenceListLimit(2))
	ctx := context.Background()
	if err := repos.Tests.Insert(ctx, domain.Test{ID: "test-1", OrganizationID: "acme"}); err != nil {
		t.Fatalf("insert test: %v", err)
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := svc.Presence.UpdatePresence(ctx, "test-1", id, nil); err != nil {
			t.Fatalf("update presence: %v", err)
		}
	}
	list, err := svc.Presence.ListPresence(ctx, "test-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ParticipantID != "p1" || list[1].ParticipantID != "p2" {
		t.Fatalf("expected the first two participants, got %+v", list)
	}
}
