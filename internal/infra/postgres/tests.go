package postgres

import (
	"context"
	"fmt"

	"evaly-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

type OrganizerRepository struct {
	pool *pgxpool.Pool
}

func NewOrganizerRepository(pool *pgxpool.Pool) *OrganizerRepository {
	return &OrganizerRepository{pool: pool}
}

func (r *OrganizerRepository) Insert(ctx context.Context, o domain.Organizer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO organizers (id, user_id, organization_id, name, created_at) VALUES ($1,$2,$3,$4,$5)`,
		o.ID, o.UserID, o.OrganizationID, o.Name, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert organizer: %w", err)
	}
	return nil
}

func (r *OrganizerRepository) FindByUserID(ctx context.Context, userID string) (domain.Organizer, error) {
	var o domain.Organizer
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, organization_id, name, created_at FROM organizers WHERE user_id=$1`, userID).
		Scan(&o.ID, &o.UserID, &o.OrganizationID, &o.Name, &o.CreatedAt)
	if err != nil {
		return domain.Organizer{}, notFound("find organizer", err)
	}
	return o, nil
}

const testColumns = `id, organization_id, created_by_organizer_id, title, description, type, access,
	is_published, show_result_immediately, scheduled_start_at, scheduled_end_at,
	activation_job_id, finish_job_id, finished_at, deleted_at, created_at, updated_at`

type TestRepository struct {
	pool *pgxpool.Pool
}

func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

func scanTest(row scanner) (domain.Test, error) {
	var t domain.Test
	err := row.Scan(&t.ID, &t.OrganizationID, &t.CreatedByOrganizerID, &t.Title, &t.Description,
		&t.Type, &t.Access, &t.IsPublished, &t.ShowResultImmediately, &t.ScheduledStartAt,
		&t.ScheduledEndAt, &t.ActivationJobID, &t.FinishJobID, &t.FinishedAt, &t.DeletedAt,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *TestRepository) Insert(ctx context.Context, t domain.Test) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO tests (`+testColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		t.ID, t.OrganizationID, t.CreatedByOrganizerID, t.Title, t.Description, string(t.Type),
		string(t.Access), t.IsPublished, t.ShowResultImmediately, t.ScheduledStartAt,
		t.ScheduledEndAt, t.ActivationJobID, t.FinishJobID, t.FinishedAt, t.DeletedAt,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	return nil
}

func (r *TestRepository) Get(ctx context.Context, id string) (domain.Test, error) {
	t, err := scanTest(r.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id=$1`, id))
	if err != nil {
		return domain.Test{}, notFound("get test", err)
	}
	return t, nil
}

func (r *TestRepository) Update(ctx context.Context, t domain.Test) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tests SET
		title=$2, description=$3, type=$4, access=$5, is_published=$6, show_result_immediately=$7,
		scheduled_start_at=$8, scheduled_end_at=$9, activation_job_id=$10, finish_job_id=$11,
		finished_at=$12, deleted_at=$13, updated_at=$14
		WHERE id=$1`,
		t.ID, t.Title, t.Description, string(t.Type), string(t.Access), t.IsPublished,
		t.ShowResultImmediately, t.ScheduledStartAt, t.ScheduledEndAt, t.ActivationJobID,
		t.FinishJobID, t.FinishedAt, t.DeletedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update test: %w", err)
	}
	return affected(tag.RowsAffected())
}

func (r *TestRepository) FindActiveByOrganization(ctx context.Context, organizationID string) ([]domain.Test, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+testColumns+` FROM tests
		WHERE organization_id=$1 AND deleted_at IS NULL ORDER BY created_at DESC`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("find tests: %w", err)
	}
	return collect(rows, scanTest)
}

const sectionColumns = `id, test_id, sort_order, title, description, duration, deleted_at, created_at`

type SectionRepository struct {
	pool *pgxpool.Pool
}

func NewSectionRepository(pool *pgxpool.Pool) *SectionRepository {
	return &SectionRepository{pool: pool}
}

func scanSection(row scanner) (domain.TestSection, error) {
	var s domain.TestSection
	err := row.Scan(&s.ID, &s.TestID, &s.Order, &s.Title, &s.Description, &s.Duration, &s.DeletedAt, &s.CreatedAt)
	return s, err
}

func (r *SectionRepository) Insert(ctx context.Context, s domain.TestSection) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO test_sections (`+sectionColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.TestID, s.Order, s.Title, s.Description, s.Duration, s.DeletedAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert section: %w", err)
	}
	return nil
}

func (r *SectionRepository) Get(ctx context.Context, id string) (domain.TestSection, error) {
	s, err := scanSection(r.pool.QueryRow(ctx, `SELECT `+sectionColumns+` FROM test_sections WHERE id=$1`, id))
	if err != nil {
		return domain.TestSection{}, notFound("get section", err)
	}
	return s, nil
}

func (r *SectionRepository) Update(ctx context.Context, s domain.TestSection) error {
	tag, err := r.pool.Exec(ctx, `UPDATE test_sections SET
		sort_order=$2, title=$3, description=$4, duration=$5, deleted_at=$6 WHERE id=$1`,
		s.ID, s.Order, s.Title, s.Description, s.Duration, s.DeletedAt)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return affected(tag.RowsAffected())
}

func (r *SectionRepository) FindActiveByTestID(ctx context.Context, testID string) ([]domain.TestSection, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sectionColumns+` FROM test_sections
		WHERE test_id=$1 AND deleted_at IS NULL ORDER BY sort_order`, testID)
	if err != nil {
		return nil, fmt.Errorf("find sections: %w", err)
	}
	return collect(rows, scanSection)
}
