package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-runner/internal/domain"
)

// AnswerKeyLoader loads newline-separated answer keys stored in Postgres.
type AnswerKeyLoader struct {
	pool *pgxpool.Pool
}

func NewAnswerKeyLoader(pool *pgxpool.Pool) *AnswerKeyLoader {
	return &AnswerKeyLoader{pool: pool}
}

func (l *AnswerKeyLoader) LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error) {
	var raw string
	err := l.pool.QueryRow(ctx, `SELECT answers FROM answer_keys WHERE ref=$1`, ref).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no answer key %q", domain.ErrAnswerKeyUnavailable, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load answer key: %v", domain.ErrAnswerKeyUnavailable, err)
	}
	return domain.ParseAnswerKeyString(raw)
}

// SaveAnswerKey upserts the key stored under ref.
func (l *AnswerKeyLoader) SaveAnswerKey(ctx context.Context, ref string, key domain.AnswerKey) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO answer_keys (ref, answers, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (ref) DO UPDATE SET answers=EXCLUDED.answers, updated_at=now()`,
		ref, key.String())
	if err != nil {
		return fmt.Errorf("save answer key: %w", err)
	}
	return nil
}
