package app

import (
	"context"
	"fmt"
	"time"

	"evaly-service/internal/domain"
	"go.uber.org/zap"
)

// SectionPatch updates a section; nil fields are left untouched.
type SectionPatch struct {
	Title       *string
	Description *string
	Duration    *int
	// ClearDuration removes the time limit.
	ClearDuration bool
}

// SectionService manages the ordered sections of a test.
type SectionService struct {
	repos Repositories
	guard *guard
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

// Create appends an empty section after the last one.
func (s *SectionService) Create(ctx context.Context, caller domain.Caller, testID string) (domain.TestSection, error) {
	test, err := s.guard.requireLiveTest(ctx, caller, testID)
	if err != nil {
		return domain.TestSection{}, err
	}
	sections, err := s.repos.Sections.FindActiveByTestID(ctx, test.ID)
	if err != nil {
		return domain.TestSection{}, fmt.Errorf("load sections: %w", err)
	}
	section := domain.TestSection{
		ID:        s.newID(),
		TestID:    test.ID,
		Order:     len(sections) + 1,
		CreatedAt: s.now(),
	}
	if err := s.repos.Sections.Insert(ctx, section); err != nil {
		return domain.TestSection{}, fmt.Errorf("insert section: %w", err)
	}
	return section, nil
}

func (s *SectionService) Update(ctx context.Context, caller domain.Caller, sectionID string, patch SectionPatch) (domain.TestSection, error) {
	if patch.Duration != nil && *patch.Duration < 0 {
		return domain.TestSection{}, fmt.Errorf("%w: negative duration", domain.ErrInvalidArgument)
	}
	section, err := s.liveSection(ctx, caller, sectionID)
	if err != nil {
		return domain.TestSection{}, err
	}
	if patch.Title != nil {
		section.Title = *patch.Title
	}
	if patch.Description != nil {
		section.Description = *patch.Description
	}
	if patch.Duration != nil {
		section.Duration = copyInt(patch.Duration)
	}
	if patch.ClearDuration {
		section.Duration = nil
	}
	if err := s.repos.Sections.Update(ctx, section); err != nil {
		return domain.TestSection{}, fmt.Errorf("update section: %w", err)
	}
	return section, nil
}

// Remove soft-deletes a section and shifts every later section up by one.
func (s *SectionService) Remove(ctx context.Context, caller domain.Caller, sectionID string) error {
	section, test, ok, err := s.guard.ownedSection(ctx, caller, sectionID)
	if err != nil {
		return err
	}
	if !ok || test.IsDeleted() {
		return domain.ErrUnauthorized
	}
	if section.IsDeleted() {
		return domain.ErrAlreadyDeleted
	}

	now := s.now()
	section.DeletedAt = &now
	if err := s.repos.Sections.Update(ctx, section); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}

	remaining, err := s.repos.Sections.FindActiveByTestID(ctx, section.TestID)
	if err != nil {
		return fmt.Errorf("load sections: %w", err)
	}
	for _, other := range remaining {
		if other.Order <= section.Order {
			continue
		}
		other.Order--
		if err := s.repos.Sections.Update(ctx, other); err != nil {
			return fmt.Errorf("renumber section %s: %w", other.ID, err)
		}
	}
	s.log.Debug("section removed", zap.String("sectionId", section.ID), zap.Int("order", section.Order))
	return nil
}

// GetByTestID lists the sections of an owned test in order; nil when not owned.
func (s *SectionService) GetByTestID(ctx context.Context, caller domain.Caller, testID string) ([]domain.TestSection, error) {
	test, ok, err := s.guard.ownedTest(ctx, caller, testID)
	if err != nil || !ok || test.IsDeleted() {
		return nil, err
	}
	return s.repos.Sections.FindActiveByTestID(ctx, test.ID)
}

// GetByID returns nil when the caller does not own the section.
func (s *SectionService) GetByID(ctx context.Context, caller domain.Caller, sectionID string) (*domain.TestSection, error) {
	section, _, ok, err := s.guard.ownedSection(ctx, caller, sectionID)
	if err != nil || !ok {
		return nil, err
	}
	return &section, nil
}

func (s *SectionService) liveSection(ctx context.Context, caller domain.Caller, sectionID string) (domain.TestSection, error) {
	section, test, ok, err := s.guard.ownedSection(ctx, caller, sectionID)
	if err != nil {
		return domain.TestSection{}, err
	}
	if !ok || section.IsDeleted() || test.IsDeleted() {
		return domain.TestSection{}, domain.ErrUnauthorized
	}
	return section, nil
}
