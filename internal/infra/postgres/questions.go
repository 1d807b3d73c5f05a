package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"evaly-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

const questionColumns = `id, reference_id, organization_id, type, question, options,
	allow_multiple_answers, sort_order, point_value, original_reference_id, deleted_at, created_at`

// QuestionRepository stores options as a JSONB array.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func scanQuestion(row scanner) (domain.Question, error) {
	var (
		q       domain.Question
		options []byte
	)
	err := row.Scan(&q.ID, &q.ReferenceID, &q.OrganizationID, &q.Type, &q.Question, &options,
		&q.AllowMultipleAnswers, &q.Order, &q.PointValue, &q.OriginalReferenceID, &q.DeletedAt, &q.CreatedAt)
	if err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
	}
	if len(q.Options) == 0 {
		q.Options = nil
	}
	return q, nil
}

func encodeOptions(options []domain.Option) (string, error) {
	if options == nil {
		options = []domain.Option{}
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return string(raw), nil
}

func (r *QuestionRepository) Insert(ctx context.Context, q domain.Question) error {
	options, err := encodeOptions(q.Options)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO questions (`+questionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8,$9,$10,$11,$12)`,
		q.ID, q.ReferenceID, q.OrganizationID, string(q.Type), q.Question, options,
		q.AllowMultipleAnswers, q.Order, q.PointValue, q.OriginalReferenceID, q.DeletedAt, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (r *QuestionRepository) Get(ctx context.Context, id string) (domain.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id))
	if err != nil {
		return domain.Question{}, notFound("get question", err)
	}
	return q, nil
}

func (r *QuestionRepository) Update(ctx context.Context, q domain.Question) error {
	options, err := encodeOptions(q.Options)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE questions SET
		type=$2, question=$3, options=$4::jsonb, allow_multiple_answers=$5, sort_order=$6,
		point_value=$7, deleted_at=$8 WHERE id=$1`,
		q.ID, string(q.Type), q.Question, options, q.AllowMultipleAnswers, q.Order, q.PointValue, q.DeletedAt)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return affected(tag.RowsAffected())
}

func (r *QuestionRepository) FindActiveByReferenceID(ctx context.Context, referenceID string) ([]domain.Question, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions
		WHERE reference_id=$1 AND deleted_at IS NULL ORDER BY sort_order`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	return collect(rows, scanQuestion)
}

const bankColumns = `id, organization_id, created_by_organizer_id, title, deleted_at, created_at`

type QuestionBankRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionBankRepository(pool *pgxpool.Pool) *QuestionBankRepository {
	return &QuestionBankRepository{pool: pool}
}

func scanBank(row scanner) (domain.QuestionBank, error) {
	var b domain.QuestionBank
	err := row.Scan(&b.ID, &b.OrganizationID, &b.CreatedByOrganizerID, &b.Title, &b.DeletedAt, &b.CreatedAt)
	return b, err
}

func (r *QuestionBankRepository) Insert(ctx context.Context, b domain.QuestionBank) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO question_banks (`+bankColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.OrganizationID, b.CreatedByOrganizerID, b.Title, b.DeletedAt, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question bank: %w", err)
	}
	return nil
}

func (r *QuestionBankRepository) Get(ctx context.Context, id string) (domain.QuestionBank, error) {
	b, err := scanBank(r.pool.QueryRow(ctx, `SELECT `+bankColumns+` FROM question_banks WHERE id=$1`, id))
	if err != nil {
		return domain.QuestionBank{}, notFound("get question bank", err)
	}
	return b, nil
}

func (r *QuestionBankRepository) Update(ctx context.Context, b domain.QuestionBank) error {
	tag, err := r.pool.Exec(ctx, `UPDATE question_banks SET title=$2, deleted_at=$3 WHERE id=$1`,
		b.ID, b.Title, b.DeletedAt)
	if err != nil {
		return fmt.Errorf("update question bank: %w", err)
	}
	return affected(tag.RowsAffected())
}

func (r *QuestionBankRepository) FindActiveByOrganization(ctx context.Context, organizationID string) ([]domain.QuestionBank, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bankColumns+` FROM question_banks
		WHERE organization_id=$1 AND deleted_at IS NULL ORDER BY created_at`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("find question banks: %w", err)
	}
	return collect(rows, scanBank)
}
