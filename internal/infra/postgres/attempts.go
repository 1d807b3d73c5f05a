package postgres

import (
	"context"
	"errors"
	"fmt"

	"evaly-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const attemptColumns = `id, test_id, test_section_id, participant_id, started_at, finished_at, deleted_at`

type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row scanner) (domain.TestAttempt, error) {
	var a domain.TestAttempt
	err := row.Scan(&a.ID, &a.TestID, &a.TestSectionID, &a.ParticipantID, &a.StartedAt, &a.FinishedAt, &a.DeletedAt)
	return a, err
}

// GetOrCreate relies on the partial unique index over active (section, participant) pairs,
// so concurrent starts converge on one row.
func (r *AttemptRepository) GetOrCreate(ctx context.Context, a domain.TestAttempt) (domain.TestAttempt, bool, error) {
	stored, err := scanAttempt(r.pool.QueryRow(ctx, `INSERT INTO test_attempts (`+attemptColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (test_section_id, participant_id) WHERE deleted_at IS NULL DO NOTHING
		RETURNING `+attemptColumns,
		a.ID, a.TestID, a.TestSectionID, a.ParticipantID, a.StartedAt, a.FinishedAt, a.DeletedAt))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.TestAttempt{}, false, fmt.Errorf("insert attempt: %w", err)
	}
	stored, err = scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM test_attempts
		WHERE test_section_id=$1 AND participant_id=$2 AND deleted_at IS NULL`, a.TestSectionID, a.ParticipantID))
	if err != nil {
		return domain.TestAttempt{}, false, notFound("load attempt", err)
	}
	return stored, false, nil
}

func (r *AttemptRepository) Get(ctx context.Context, id string) (domain.TestAttempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM test_attempts WHERE id=$1`, id))
	if err != nil {
		return domain.TestAttempt{}, notFound("get attempt", err)
	}
	return a, nil
}

func (r *AttemptRepository) Update(ctx context.Context, a domain.TestAttempt) error {
	tag, err := r.pool.Exec(ctx, `UPDATE test_attempts SET finished_at=$2, deleted_at=$3 WHERE id=$1`,
		a.ID, a.FinishedAt, a.DeletedAt)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	return affected(tag.RowsAffected())
}

func (r *AttemptRepository) FindActiveByTestID(ctx context.Context, testID string) ([]domain.TestAttempt, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+attemptColumns+` FROM test_attempts
		WHERE test_id=$1 AND deleted_at IS NULL ORDER BY started_at, id`, testID)
	if err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}
	return collect(rows, scanAttempt)
}

func (r *AttemptRepository) FindActiveByParticipant(ctx context.Context, testID, participantID string) ([]domain.TestAttempt, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+attemptColumns+` FROM test_attempts
		WHERE test_id=$1 AND participant_id=$2 AND deleted_at IS NULL ORDER BY started_at, id`, testID, participantID)
	if err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}
	return collect(rows, scanAttempt)
}

const answerColumns = `id, test_attempt_id, question_id, test_section_id, answer_text, answer_options,
	is_correct, deleted_at, updated_at`

type AnswerRepository struct {
	pool *pgxpool.Pool
}

func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

func scanAnswer(row scanner) (domain.TestAttemptAnswer, error) {
	var a domain.TestAttemptAnswer
	err := row.Scan(&a.ID, &a.TestAttemptID, &a.QuestionID, &a.TestSectionID, &a.AnswerText,
		&a.AnswerOptions, &a.IsCorrect, &a.DeletedAt, &a.UpdatedAt)
	if len(a.AnswerOptions) == 0 {
		a.AnswerOptions = nil
	}
	return a, err
}

// Upsert replaces the payload of an existing (attempt, question) row and clears its verdict.
func (r *AnswerRepository) Upsert(ctx context.Context, a domain.TestAttemptAnswer) (domain.TestAttemptAnswer, error) {
	options := a.AnswerOptions
	if options == nil {
		options = []string{}
	}
	stored, err := scanAnswer(r.pool.QueryRow(ctx, `INSERT INTO test_attempt_answers (`+answerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,NULL,NULL,$7)
		ON CONFLICT (test_attempt_id, question_id) DO UPDATE SET
			answer_text=EXCLUDED.answer_text, answer_options=EXCLUDED.answer_options,
			is_correct=NULL, deleted_at=NULL, updated_at=EXCLUDED.updated_at
		RETURNING `+answerColumns,
		a.ID, a.TestAttemptID, a.QuestionID, a.TestSectionID, a.AnswerText, options, a.UpdatedAt))
	if err != nil {
		return domain.TestAttemptAnswer{}, fmt.Errorf("upsert answer: %w", err)
	}
	return stored, nil
}

func (r *AnswerRepository) SetCorrectness(ctx context.Context, id string, isCorrect *bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE test_attempt_answers SET is_correct=$2 WHERE id=$1`, id, isCorrect)
	if err != nil {
		return fmt.Errorf("set correctness: %w", err)
	}
	return affected(tag.RowsAffected())
}

func (r *AnswerRepository) FindActiveByAttemptID(ctx context.Context, attemptID string) ([]domain.TestAttemptAnswer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+answerColumns+` FROM test_attempt_answers
		WHERE test_attempt_id=$1 AND deleted_at IS NULL ORDER BY updated_at, id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("find answers: %w", err)
	}
	return collect(rows, scanAnswer)
}

func (r *AnswerRepository) FindActiveBySectionID(ctx context.Context, sectionID string) ([]domain.TestAttemptAnswer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+answerColumns+` FROM test_attempt_answers
		WHERE test_section_id=$1 AND deleted_at IS NULL ORDER BY updated_at, id`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("find answers: %w", err)
	}
	return collect(rows, scanAnswer)
}
