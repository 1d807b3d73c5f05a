package memory

import (
	"context"
	"sort"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
)

// NewRepositories returns in-memory implementations of every storage port except presence,
// which lives in NewPresenceStore.
func NewRepositories() app.Repositories {
	return app.Repositories{
		Organizers:    NewOrganizerRepository(),
		Tests:         NewTestRepository(),
		Sections:      NewSectionRepository(),
		Questions:     NewQuestionRepository(),
		QuestionBanks: NewQuestionBankRepository(),
		Attempts:      NewAttemptRepository(),
		Answers:       NewAnswerRepository(),
		Presence:      NewPresenceStore(),
	}
}

type OrganizerRepository struct {
	t *table[domain.Organizer]
}

func NewOrganizerRepository() *OrganizerRepository {
	return &OrganizerRepository{t: newTable[domain.Organizer]()}
}

func (r *OrganizerRepository) Insert(_ context.Context, o domain.Organizer) error {
	r.t.insert(o.ID, o)
	return nil
}

func (r *OrganizerRepository) FindByUserID(_ context.Context, userID string) (domain.Organizer, error) {
	found := r.t.filter(func(o domain.Organizer) bool { return o.UserID == userID })
	if len(found) == 0 {
		return domain.Organizer{}, domain.ErrNotFound
	}
	return found[0], nil
}

type TestRepository struct {
	t *table[domain.Test]
}

func NewTestRepository() *TestRepository {
	return &TestRepository{t: newTable[domain.Test]()}
}

func (r *TestRepository) Insert(_ context.Context, test domain.Test) error {
	r.t.insert(test.ID, test)
	return nil
}

func (r *TestRepository) Get(_ context.Context, id string) (domain.Test, error) {
	return r.t.get(id)
}

func (r *TestRepository) Update(_ context.Context, test domain.Test) error {
	return r.t.update(test.ID, test)
}

// FindActiveByOrganization returns newest tests first.
func (r *TestRepository) FindActiveByOrganization(_ context.Context, organizationID string) ([]domain.Test, error) {
	tests := r.t.filter(func(t domain.Test) bool {
		return t.OrganizationID == organizationID && t.DeletedAt == nil
	})
	sort.SliceStable(tests, func(i, j int) bool { return tests[i].CreatedAt.After(tests[j].CreatedAt) })
	return tests, nil
}

type SectionRepository struct {
	t *table[domain.TestSection]
}

func NewSectionRepository() *SectionRepository {
	return &SectionRepository{t: newTable[domain.TestSection]()}
}

func (r *SectionRepository) Insert(_ context.Context, s domain.TestSection) error {
	r.t.insert(s.ID, s)
	return nil
}

func (r *SectionRepository) Get(_ context.Context, id string) (domain.TestSection, error) {
	return r.t.get(id)
}

func (r *SectionRepository) Update(_ context.Context, s domain.TestSection) error {
	return r.t.update(s.ID, s)
}

func (r *SectionRepository) FindActiveByTestID(_ context.Context, testID string) ([]domain.TestSection, error) {
	sections := r.t.filter(func(s domain.TestSection) bool {
		return s.TestID == testID && s.DeletedAt == nil
	})
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
	return sections, nil
}

type QuestionRepository struct {
	t *table[domain.Question]
}

func NewQuestionRepository() *QuestionRepository {
	return &QuestionRepository{t: newTable[domain.Question]()}
}

func (r *QuestionRepository) Insert(_ context.Context, q domain.Question) error {
	r.t.insert(q.ID, q.Clone())
	return nil
}

func (r *QuestionRepository) Get(_ context.Context, id string) (domain.Question, error) {
	q, err := r.t.get(id)
	return q.Clone(), err
}

func (r *QuestionRepository) Update(_ context.Context, q domain.Question) error {
	return r.t.update(q.ID, q.Clone())
}

func (r *QuestionRepository) FindActiveByReferenceID(_ context.Context, referenceID string) ([]domain.Question, error) {
	questions := r.t.filter(func(q domain.Question) bool {
		return q.ReferenceID == referenceID && q.DeletedAt == nil
	})
	for i := range questions {
		questions[i] = questions[i].Clone()
	}
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })
	return questions, nil
}

type QuestionBankRepository struct {
	t *table[domain.QuestionBank]
}

func NewQuestionBankRepository() *QuestionBankRepository {
	return &QuestionBankRepository{t: newTable[domain.QuestionBank]()}
}

func (r *QuestionBankRepository) Insert(_ context.Context, b domain.QuestionBank) error {
	r.t.insert(b.ID, b)
	return nil
}

func (r *QuestionBankRepository) Get(_ context.Context, id string) (domain.QuestionBank, error) {
	return r.t.get(id)
}

func (r *QuestionBankRepository) Update(_ context.Context, b domain.QuestionBank) error {
	return r.t.update(b.ID, b)
}

func (r *QuestionBankRepository) FindActiveByOrganization(_ context.Context, organizationID string) ([]domain.QuestionBank, error) {
	return r.t.filter(func(b domain.QuestionBank) bool {
		return b.OrganizationID == organizationID && b.DeletedAt == nil
	}), nil
}
