package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"timed-quiz-runner/internal/domain"
)

// ReportSink writes each report to <dir>/<session id>/<file name>.
type ReportSink struct {
	dir string
}

func NewReportSink(dir string) *ReportSink {
	return &ReportSink{dir: dir}
}

func (s *ReportSink) Deliver(_ context.Context, report domain.Report) error {
	name := report.FileName
	if name == "" {
		name = domain.ReportFileName
	}
	dir := filepath.Join(s.dir, filepath.Base(report.SessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(report.Body), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
