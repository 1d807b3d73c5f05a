package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"evaly-service/internal/domain"
)

// QuestionBankService manages reusable question pools and copies their questions into sections.
type QuestionBankService struct {
	repos     Repositories
	guard     *guard
	questions *QuestionService
	now       func() time.Time
	newID     func() string
}

func (s *QuestionBankService) Create(ctx context.Context, caller domain.Caller, title string) (domain.QuestionBank, error) {
	if !caller.IsOrganizer() {
		return domain.QuestionBank{}, domain.ErrUnauthorized
	}
	bank := domain.QuestionBank{
		ID:                   s.newID(),
		OrganizationID:       caller.OrganizationID,
		CreatedByOrganizerID: caller.OrganizerID,
		Title:                strings.TrimSpace(title),
		CreatedAt:            s.now(),
	}
	if err := s.repos.QuestionBanks.Insert(ctx, bank); err != nil {
		return domain.QuestionBank{}, fmt.Errorf("insert question bank: %w", err)
	}
	return bank, nil
}

func (s *QuestionBankService) GetAll(ctx context.Context, caller domain.Caller) ([]domain.QuestionBank, error) {
	if !caller.IsOrganizer() {
		return nil, nil
	}
	return s.repos.QuestionBanks.FindActiveByOrganization(ctx, caller.OrganizationID)
}

// GetByID returns nil when not owned; a deleted bank is returned with DeletedAt set.
func (s *QuestionBankService) GetByID(ctx context.Context, caller domain.Caller, bankID string) (*domain.QuestionBank, error) {
	bank, ok, err := s.guard.ownedBank(ctx, caller, bankID)
	if err != nil || !ok {
		return nil, err
	}
	return &bank, nil
}

func (s *QuestionBankService) Update(ctx context.Context, caller domain.Caller, bankID, title string) (domain.QuestionBank, error) {
	bank, ok, err := s.guard.ownedBank(ctx, caller, bankID)
	if err != nil {
		return domain.QuestionBank{}, err
	}
	if !ok || bank.IsDeleted() {
		return domain.QuestionBank{}, domain.ErrUnauthorized
	}
	bank.Title = strings.TrimSpace(title)
	if err := s.repos.QuestionBanks.Update(ctx, bank); err != nil {
		return domain.QuestionBank{}, fmt.Errorf("update question bank: %w", err)
	}
	return bank, nil
}

func (s *QuestionBankService) DeleteByID(ctx context.Context, caller domain.Caller, bankID string) error {
	bank, ok, err := s.guard.ownedBank(ctx, caller, bankID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	if bank.IsDeleted() {
		return domain.ErrAlreadyDeleted
	}
	now := s.now()
	bank.DeletedAt = &now
	if err := s.repos.QuestionBanks.Update(ctx, bank); err != nil {
		return fmt.Errorf("delete question bank: %w", err)
	}
	return nil
}

func (s *QuestionBankService) GetQuestions(ctx context.Context, caller domain.Caller, bankID string) ([]domain.Question, error) {
	bank, ok, err := s.guard.ownedBank(ctx, caller, bankID)
	if err != nil || !ok || bank.IsDeleted() {
		return nil, err
	}
	return s.repos.Questions.FindActiveByReferenceID(ctx, bank.ID)
}

// AddQuestion appends a question to a bank.
func (s *QuestionBankService) AddQuestion(ctx context.Context, caller domain.Caller, bankID string, in QuestionInput) (domain.Question, error) {
	in.ReferenceID = bankID
	return s.questions.Create(ctx, caller, in)
}

// DuplicateQuestionsToSection copies bank questions to the end of a section, keeping their
// relative order, options and point values, and records the bank as OriginalReferenceID.
func (s *QuestionBankService) DuplicateQuestionsToSection(ctx context.Context, caller domain.Caller, bankID string, questionIDs []string, sectionID string) ([]domain.Question, error) {
	bank, ok, err := s.guard.ownedBank(ctx, caller, bankID)
	if err != nil {
		return nil, err
	}
	if !ok || bank.IsDeleted() {
		return nil, domain.ErrUnauthorized
	}
	section, test, ok, err := s.guard.ownedSection(ctx, caller, sectionID)
	if err != nil {
		return nil, err
	}
	if !ok || section.IsDeleted() || test.IsDeleted() {
		return nil, domain.ErrUnauthorized
	}

	source, err := s.repos.Questions.FindActiveByReferenceID(ctx, bank.ID)
	if err != nil {
		return nil, fmt.Errorf("load bank questions: %w", err)
	}
	if len(questionIDs) > 0 {
		wanted := make(map[string]bool, len(questionIDs))
		for _, id := range questionIDs {
			wanted[id] = true
		}
		filtered := source[:0:0]
		for _, q := range source {
			if wanted[q.ID] {
				filtered = append(filtered, q)
			}
		}
		if len(filtered) != len(wanted) {
			return nil, fmt.Errorf("%w: question not in bank", domain.ErrNotFound)
		}
		source = filtered
	}
	sort.SliceStable(source, func(i, j int) bool { return source[i].Order < source[j].Order })

	existing, err := s.repos.Questions.FindActiveByReferenceID(ctx, section.ID)
	if err != nil {
		return nil, fmt.Errorf("load section questions: %w", err)
	}

	now := s.now()
	out := make([]domain.Question, 0, len(source))
	for i, q := range source {
		qc := q.Clone()
		qc.ID = s.newID()
		qc.ReferenceID = section.ID
		qc.OriginalReferenceID = bank.ID
		qc.Order = len(existing) + i + 1
		qc.CreatedAt = now
		if err := s.repos.Questions.Insert(ctx, qc); err != nil {
			return nil, fmt.Errorf("insert question copy: %w", err)
		}
		out = append(out, qc)
	}
	return out, nil
}
