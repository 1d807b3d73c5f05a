package memory

import (
	"context"
	"sync"

	"evaly-service/internal/domain"
)

// AttemptRepository is an in-memory implementation of app.AttemptRepository.
type AttemptRepository struct {
	mu sync.Mutex
	t  *table[domain.TestAttempt]
}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{t: newTable[domain.TestAttempt]()}
}

func (r *AttemptRepository) GetOrCreate(_ context.Context, attempt domain.TestAttempt) (domain.TestAttempt, bool, error) {
	// Serialises concurrent starts so a participant gets one attempt per section.
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.t.filter(func(a domain.TestAttempt) bool {
		return a.TestSectionID == attempt.TestSectionID &&
			a.ParticipantID == attempt.ParticipantID &&
			a.DeletedAt == nil
	})
	if len(existing) > 0 {
		return existing[0], false, nil
	}
	r.t.insert(attempt.ID, attempt)
	return attempt, true, nil
}

func (r *AttemptRepository) Get(_ context.Context, id string) (domain.TestAttempt, error) {
	return r.t.get(id)
}

func (r *AttemptRepository) Update(_ context.Context, attempt domain.TestAttempt) error {
	return r.t.update(attempt.ID, attempt)
}

func (r *AttemptRepository) FindActiveByTestID(_ context.Context, testID string) ([]domain.TestAttempt, error) {
	return r.t.filter(func(a domain.TestAttempt) bool {
		return a.TestID == testID && a.DeletedAt == nil
	}), nil
}

func (r *AttemptRepository) FindActiveByParticipant(_ context.Context, testID, participantID string) ([]domain.TestAttempt, error) {
	return r.t.filter(func(a domain.TestAttempt) bool {
		return a.TestID == testID && a.ParticipantID == participantID && a.DeletedAt == nil
	}), nil
}

// AnswerRepository keys answers on (attempt, question).
type AnswerRepository struct {
	mu    sync.Mutex
	t     *table[domain.TestAttemptAnswer]
	index map[[2]string]string
}

func NewAnswerRepository() *AnswerRepository {
	return &AnswerRepository{
		t:     newTable[domain.TestAttemptAnswer](),
		index: make(map[[2]string]string),
	}
}

func (r *AnswerRepository) Upsert(_ context.Context, answer domain.TestAttemptAnswer) (domain.TestAttemptAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{answer.TestAttemptID, answer.QuestionID}
	if id, ok := r.index[key]; ok {
		answer.ID = id
	} else {
		r.index[key] = answer.ID
	}
	answer.AnswerOptions = append([]string(nil), answer.AnswerOptions...)
	answer.IsCorrect = nil
	r.t.insert(answer.ID, answer)
	return answer, nil
}

func (r *AnswerRepository) SetCorrectness(_ context.Context, id string, isCorrect *bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	answer, err := r.t.get(id)
	if err != nil {
		return err
	}
	if isCorrect != nil {
		v := *isCorrect
		isCorrect = &v
	}
	answer.IsCorrect = isCorrect
	return r.t.update(id, answer)
}

func (r *AnswerRepository) FindActiveByAttemptID(_ context.Context, attemptID string) ([]domain.TestAttemptAnswer, error) {
	return r.t.filter(func(a domain.TestAttemptAnswer) bool {
		return a.TestAttemptID == attemptID && a.DeletedAt == nil
	}), nil
}

func (r *AnswerRepository) FindActiveBySectionID(_ context.Context, sectionID string) ([]domain.TestAttemptAnswer, error) {
	return r.t.filter(func(a domain.TestAttemptAnswer) bool {
		return a.TestSectionID == sectionID && a.DeletedAt == nil
	}), nil
}
