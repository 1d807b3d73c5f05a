package postgres

import (
	"errors"
	"fmt"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// NewRepositories returns pgx-backed implementations of the storage ports. Presence is left
// nil; it is ephemeral and lives in Redis or memory.
func NewRepositories(pool *pgxpool.Pool) app.Repositories {
	return app.Repositories{
		Organizers:    NewOrganizerRepository(pool),
		Tests:         NewTestRepository(pool),
		Sections:      NewSectionRepository(pool),
		Questions:     NewQuestionRepository(pool),
		QuestionBanks: NewQuestionBankRepository(pool),
		Attempts:      NewAttemptRepository(pool),
		Answers:       NewAnswerRepository(pool),
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound and wraps everything else.
func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// affected turns an UPDATE that touched nothing into domain.ErrNotFound.
func affected(rows int64) error {
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
