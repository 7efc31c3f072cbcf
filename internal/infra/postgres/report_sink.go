package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-runner/internal/domain"
)

// ReportSink stores finished reports in the exam_reports table.
type ReportSink struct {
	pool *pgxpool.Pool
}

func NewReportSink(pool *pgxpool.Pool) *ReportSink {
	return &ReportSink{pool: pool}
}

func (s *ReportSink) Deliver(ctx context.Context, report domain.Report) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exam_reports (session_id, file_name, body, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING`,
		report.SessionID, report.FileName, report.Body, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

// Load returns the stored report for a session, or ErrReportNotFound.
func (s *ReportSink) Load(ctx context.Context, sessionID string) (domain.Report, error) {
	report := domain.Report{SessionID: sessionID}
	err := s.pool.QueryRow(ctx, `SELECT file_name, body, created_at FROM exam_reports WHERE session_id=$1`, sessionID).
		Scan(&report.FileName, &report.Body, &report.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Report{}, fmt.Errorf("%w: %s", domain.ErrReportNotFound, sessionID)
	}
	if err != nil {
		return domain.Report{}, fmt.Errorf("load report: %w", err)
	}
	return report, nil
}
