package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"evaly-service/internal/domain"
)

// QuestionInput describes a new question under a section or bank.
type QuestionInput struct {
	ReferenceID          string
	Type                 domain.QuestionType
	Question             string
	Options              []domain.Option
	AllowMultipleAnswers bool
	PointValue           *int
}

// QuestionPatch edits a question; nil fields are left untouched.
type QuestionPatch struct {
	Type                 *domain.QuestionType
	Question             *string
	Options              *[]domain.Option
	AllowMultipleAnswers *bool
	PointValue           *int
}

// QuestionService manages questions of sections and question banks.
type QuestionService struct {
	repos Repositories
	guard *guard
	now   func() time.Time
	newID func() string
}

// Create appends a question at the end of its reference.
func (s *QuestionService) Create(ctx context.Context, caller domain.Caller, in QuestionInput) (domain.Question, error) {
	if err := s.validate(in.Type, in.Options, in.PointValue); err != nil {
		return domain.Question{}, err
	}
	ok, err := s.guard.ownedReference(ctx, caller, in.ReferenceID)
	if err != nil {
		return domain.Question{}, err
	}
	if !ok {
		return domain.Question{}, domain.ErrUnauthorized
	}
	existing, err := s.repos.Questions.FindActiveByReferenceID(ctx, in.ReferenceID)
	if err != nil {
		return domain.Question{}, fmt.Errorf("load questions: %w", err)
	}

	q := domain.Question{
		ID:                   s.newID(),
		ReferenceID:          in.ReferenceID,
		OrganizationID:       caller.OrganizationID,
		Type:                 in.Type,
		Question:             in.Question,
		AllowMultipleAnswers: in.AllowMultipleAnswers,
		Order:                len(existing) + 1,
		PointValue:           copyInt(in.PointValue),
		CreatedAt:            s.now(),
	}
	if in.Type.IsChoice() {
		q.Options = s.normalizeOptions(in.Options)
	}
	if err := s.repos.Questions.Insert(ctx, q); err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

func (s *QuestionService) Update(ctx context.Context, caller domain.Caller, questionID string, patch QuestionPatch) (domain.Question, error) {
	q, err := s.liveQuestion(ctx, caller, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	if patch.Type != nil {
		q.Type = *patch.Type
	}
	if patch.Question != nil {
		q.Question = *patch.Question
	}
	if patch.Options != nil {
		q.Options = *patch.Options
	}
	if patch.AllowMultipleAnswers != nil {
		q.AllowMultipleAnswers = *patch.AllowMultipleAnswers
	}
	if patch.PointValue != nil {
		q.PointValue = copyInt(patch.PointValue)
	}
	if err := s.validate(q.Type, q.Options, q.PointValue); err != nil {
		return domain.Question{}, err
	}
	if q.Type.IsChoice() {
		q.Options = s.normalizeOptions(q.Options)
	} else {
		q.Options = nil
	}
	if err := s.repos.Questions.Update(ctx, q); err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	return q, nil
}

// Delete soft-deletes a question and closes the gap in its reference's ordering.
func (s *QuestionService) Delete(ctx context.Context, caller domain.Caller, questionID string) error {
	q, err := s.repos.Questions.Get(ctx, questionID)
	if err != nil {
		return domain.ErrUnauthorized
	}
	ok, err := s.guard.ownedReference(ctx, caller, q.ReferenceID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	if q.IsDeleted() {
		return domain.ErrAlreadyDeleted
	}

	now := s.now()
	q.DeletedAt = &now
	if err := s.repos.Questions.Update(ctx, q); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return renumberQuestions(ctx, s.repos.Questions, q.ReferenceID)
}

// GetByReference lists the questions of an owned section or bank; nil when not owned.
func (s *QuestionService) GetByReference(ctx context.Context, caller domain.Caller, referenceID string) ([]domain.Question, error) {
	ok, err := s.guard.ownedReference(ctx, caller, referenceID)
	if err != nil || !ok {
		return nil, err
	}
	return s.repos.Questions.FindActiveByReferenceID(ctx, referenceID)
}

func (s *QuestionService) liveQuestion(ctx context.Context, caller domain.Caller, questionID string) (domain.Question, error) {
	q, err := s.repos.Questions.Get(ctx, questionID)
	if err != nil || q.IsDeleted() {
		return domain.Question{}, domain.ErrUnauthorized
	}
	ok, err := s.guard.ownedReference(ctx, caller, q.ReferenceID)
	if err != nil {
		return domain.Question{}, err
	}
	if !ok {
		return domain.Question{}, domain.ErrUnauthorized
	}
	return q, nil
}

func (s *QuestionService) validate(t domain.QuestionType, options []domain.Option, points *int) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown question type %q", domain.ErrInvalidArgument, t)
	}
	if points != nil && *points < 0 {
		return fmt.Errorf("%w: negative point value", domain.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		id := strings.TrimSpace(opt.ID)
		if id == "" {
			continue
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate option id %q", domain.ErrInvalidArgument, id)
		}
		seen[id] = true
	}
	return nil
}

// normalizeOptions assigns ids to options submitted without one.
func (s *QuestionService) normalizeOptions(options []domain.Option) []domain.Option {
	out := make([]domain.Option, len(options))
	for i, opt := range options {
		if strings.TrimSpace(opt.ID) == "" {
			opt.ID = s.newID()
		}
		out[i] = opt
	}
	return out
}

// renumberQuestions rewrites the orders of a reference's questions to 1..N.
func renumberQuestions(ctx context.Context, repo QuestionRepository, referenceID string) error {
	questions, err := repo.FindActiveByReferenceID(ctx, referenceID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	for i, q := range questions {
		if q.Order == i+1 {
			continue
		}
		q.Order = i + 1
		if err := repo.Update(ctx, q); err != nil {
			return fmt.Errorf("renumber question %s: %w", q.ID, err)
		}
	}
	return nil
}
