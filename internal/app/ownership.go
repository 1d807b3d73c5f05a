package app

import (
	"context"
	"errors"

	"evaly-service/internal/domain"
)

// guard resolves whether a caller's organization owns a test, section or bank.
// Missing links fold into "not owner"; only storage failures surface as errors.
type guard struct {
	tests    TestRepository
	sections SectionRepository
	banks    QuestionBankRepository
}

// ownedTest returns the test when the caller's organization owns it.
// Deleted tests are returned (ok=true) so callers can decide between
// ErrAlreadyDeleted and ErrUnauthorized.
func (g *guard) ownedTest(ctx context.Context, caller domain.Caller, testID string) (domain.Test, bool, error) {
	if !caller.IsOrganizer() || testID == "" {
		return domain.Test{}, false, nil
	}
	test, err := g.tests.Get(ctx, testID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Test{}, false, nil
	}
	if err != nil {
		return domain.Test{}, false, err
	}
	if test.OrganizationID != caller.OrganizationID {
		return domain.Test{}, false, nil
	}
	return test, true, nil
}

// requireLiveTest is ownedTest for mutations: anything but an owned, non-deleted test is unauthorized.
func (g *guard) requireLiveTest(ctx context.Context, caller domain.Caller, testID string) (domain.Test, error) {
	test, ok, err := g.ownedTest(ctx, caller, testID)
	if err != nil {
		return domain.Test{}, err
	}
	if !ok || test.IsDeleted() {
		return domain.Test{}, domain.ErrUnauthorized
	}
	return test, nil
}

// ownedSection resolves a section and its parent test for the caller.
func (g *guard) ownedSection(ctx context.Context, caller domain.Caller, sectionID string) (domain.TestSection, domain.Test, bool, error) {
	if !caller.IsOrganizer() || sectionID == "" {
		return domain.TestSection{}, domain.Test{}, false, nil
	}
	section, err := g.sections.Get(ctx, sectionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.TestSection{}, domain.Test{}, false, nil
	}
	if err != nil {
		return domain.TestSection{}, domain.Test{}, false, err
	}
	test, ok, err := g.ownedTest(ctx, caller, section.TestID)
	if err != nil || !ok {
		return domain.TestSection{}, domain.Test{}, false, err
	}
	return section, test, true, nil
}

func (g *guard) ownedBank(ctx context.Context, caller domain.Caller, bankID string) (domain.QuestionBank, bool, error) {
	if !caller.IsOrganizer() || bankID == "" {
		return domain.QuestionBank{}, false, nil
	}
	bank, err := g.banks.Get(ctx, bankID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.QuestionBank{}, false, nil
	}
	if err != nil {
		return domain.QuestionBank{}, false, err
	}
	if bank.OrganizationID != caller.OrganizationID {
		return domain.QuestionBank{}, false, nil
	}
	return bank, true, nil
}

// ownedReference checks a question reference, which is either a section or a question bank.
// Deleted references are not owned.
func (g *guard) ownedReference(ctx context.Context, caller domain.Caller, referenceID string) (bool, error) {
	section, test, ok, err := g.ownedSection(ctx, caller, referenceID)
	if err != nil {
		return false, err
	}
	if ok {
		return !section.IsDeleted() && !test.IsDeleted(), nil
	}
	bank, ok, err := g.ownedBank(ctx, caller, referenceID)
	if err != nil || !ok {
		return false, err
	}
	return !bank.IsDeleted(), nil
}

// CallerResolver turns an authenticated user id into a Caller.
type CallerResolver struct {
	organizers OrganizerRepository
}

// Resolve looks up the organizer record of a user. Users without one resolve as plain participants.
func (r *CallerResolver) Resolve(ctx context.Context, userID string) (domain.Caller, error) {
	if userID == "" {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	caller := domain.Caller{UserID: userID}
	organizer, err := r.organizers.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return caller, nil
	}
	if err != nil {
		return domain.Caller{}, err
	}
	caller.OrganizerID = organizer.ID
	caller.OrganizationID = organizer.OrganizationID
	return caller, nil
}
