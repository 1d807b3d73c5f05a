package app_test

import (
	"errors"
	"testing"

	"evaly-service/internal/domain"
)

func TestCallerResolver(t *testing.T) {
	f := newFixture(t)
	if err := f.repos.Organizers.Insert(f.ctx, domain.Organizer{
		ID: "organizer-9", UserID: "user-9", OrganizationID: "initech", Name: "Peter",
	}); err != nil {
		t.Fatalf("insert organizer: %v", err)
	}

	organizer, err := f.svc.Callers.Resolve(f.ctx, "user-9")
	if err != nil {
		t.Fatalf("resolve organizer: %v", err)
	}
	if !organizer.IsOrganizer() || organizer.OrganizationID != "initech" || organizer.OrganizerID != "organizer-9" {
		t.Fatalf("unexpected organizer caller: %+v", organizer)
	}

	participant, err := f.svc.Callers.Resolve(f.ctx, "user-10")
	if err != nil {
		t.Fatalf("resolve participant: %v", err)
	}
	if participant.IsOrganizer() || participant.UserID != "user-10" {
		t.Fatalf("unexpected participant caller: %+v", participant)
	}

	if _, err := f.svc.Callers.Resolve(f.ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
